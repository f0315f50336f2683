package ddl

import "taxietl/internal/table"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMP)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table").
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect is what a backend contributes to DDL rendering.
type Dialect interface {
	// QuoteIdent quotes a single identifier part.
	QuoteIdent(name string) string
	// ColumnType maps a table kind to the backend's SQL type. An empty result
	// means the kind is not supported.
	ColumnType(k table.Kind) string
}

// FromSchema builds a TableDef with nullable columns typed by d.
func FromSchema(fqn string, s table.Schema, d Dialect) (TableDef, error) {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(s))}
	for _, f := range s {
		typ := d.ColumnType(f.Kind)
		if typ == "" {
			return TableDef{}, errUnsupportedKind(f.Name, f.Kind)
		}
		def.Columns = append(def.Columns, ColumnDef{Name: f.Name, SQLType: typ, Nullable: true})
	}
	return def, nil
}
