package storage

import (
	"fmt"
	"sync"

	"taxietl/internal/ddl"
	"taxietl/internal/table"
)

var (
	ddlMu       sync.RWMutex
	ddlDialects = map[string]ddl.Dialect{}
)

// RegisterDDL registers (or replaces) the DDL dialect for a storage kind. It
// is called from backend packages' init functions next to Register.
func RegisterDDL(kind string, d ddl.Dialect) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlDialects[kind] = d
}

// DialectFor returns the DDL dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, error) {
	ddlMu.RLock()
	d, ok := ddlDialects[kind]
	ddlMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no DDL dialect registered for storage.kind=%q", kind)
	}
	return d, nil
}

// CreateTableSQL renders the CREATE TABLE statement that kind would issue for
// a table named name with schema s. Callers do not need an open Repository.
func CreateTableSQL(kind, name string, s table.Schema) (string, error) {
	d, err := DialectFor(kind)
	if err != nil {
		return "", err
	}
	def, err := ddl.FromSchema(name, s, d)
	if err != nil {
		return "", err
	}
	return ddl.BuildCreateTableSQL(d, def)
}
