// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE and DROP statements from it.
//
// Identifiers are emitted as-is unless a Dialect is given, in which case every
// dotted part of the table name and every column name is quoted by it.
// ColumnDef.Default is raw SQL; the caller is responsible for its dialect
// correctness.
package ddl

import (
	"fmt"
	"strings"

	"taxietl/internal/table"
)

func errUnsupportedKind(col string, k table.Kind) error {
	return fmt.Errorf("ddl: column %s has unsupported kind %s", col, k)
}

// QuoteFQN quotes each dotted part of fqn with d. A nil d returns fqn trimmed.
func QuoteFQN(d Dialect, fqn string) string {
	fqn = strings.TrimSpace(fqn)
	if d == nil {
		return fqn
	}
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteIdent(d Dialect, name string) string {
	if d == nil {
		return name
	}
	return d.QuoteIdent(name)
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//     where NOT NULL is added when Nullable == false.
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (<col1>, <col2>, ...) clause.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		name = quoteIdent(d, name)

		var sb strings.Builder
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, name)
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		QuoteFQN(d, fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS for fqn.
func BuildDropTableSQL(d Dialect, fqn string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteFQN(d, fqn))
}
