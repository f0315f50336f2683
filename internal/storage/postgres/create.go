package postgres

import (
	"fmt"
	"strings"

	gddl "taxietl/internal/ddl"
	"taxietl/internal/table"
)

// Dialect renders Postgres identifiers and column types.
type Dialect struct{}

// QuoteIdent quotes a single identifier segment for Postgres, e.g.:
//
//	QuoteIdent(`pcv`)        => `"pcv"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func (Dialect) QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// ColumnType maps kinds to Postgres types. Timestamps are naive.
func (Dialect) ColumnType(k table.Kind) string {
	switch k {
	case table.KindString:
		return "TEXT"
	case table.KindInt64:
		return "BIGINT"
	case table.KindFloat64:
		return "DOUBLE PRECISION"
	case table.KindBool:
		return "BOOLEAN"
	case table.KindTimestamp:
		return "TIMESTAMP"
	}
	return ""
}

// BuildCreateTableSQL builds a Postgres CREATE TABLE statement. It follows
// ddl.BuildCreateTableSQL with one difference: primary-key columns are always
// rendered NOT NULL.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	if strings.TrimSpace(t.FQN) == "" {
		return "", fmt.Errorf("postgres ddl: table FQN must not be empty")
	}
	cols := make([]gddl.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		if c.PrimaryKey {
			c.Nullable = false
		}
		cols[i] = c
	}
	return gddl.BuildCreateTableSQL(Dialect{}, gddl.TableDef{FQN: t.FQN, Columns: cols})
}
