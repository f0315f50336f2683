// Package sqldb is the database/sql implementation of storage.Repository
// shared by the SQLite, MySQL and SQL Server backends. A Dialect supplies the
// driver name, identifier quoting, type names and bind-parameter style.
//
// Tables are recreated with DROP TABLE IF EXISTS + CREATE TABLE in one
// transaction. Rows are appended with multi-row INSERT statements, chunked so
// no statement exceeds the dialect's bind-parameter limit, inside one
// transaction per call.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"taxietl/internal/ddl"
	"taxietl/internal/table"
)

// Dialect describes one SQL backend.
type Dialect struct {
	Name   string // storage kind, used in errors and logs
	Driver string // database/sql driver name

	Quote func(ident string) string
	Types map[table.Kind]string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	MaxParams   int
}

// QuoteIdent implements ddl.Dialect.
func (d Dialect) QuoteIdent(name string) string { return d.Quote(name) }

// ColumnType implements ddl.Dialect.
func (d Dialect) ColumnType(k table.Kind) string { return d.Types[k] }

// QuestionMark is the "?" placeholder style.
func QuestionMark(int) string { return "?" }

// Repository writes tables through database/sql.
type Repository struct {
	db *sql.DB
	d  Dialect
}

// Open connects with d.Driver and pings with a 5s timeout. The returned
// function closes the pool.
func Open(ctx context.Context, d Dialect, dsn string) (*Repository, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("%s: DSN must not be empty", d.Name)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	return New(db, d), func() { _ = db.Close() }, nil
}

// New wraps an open pool.
func New(db *sql.DB, d Dialect) *Repository { return &Repository{db: db, d: d} }

// DB returns the underlying pool.
func (r *Repository) DB() *sql.DB { return r.db }

// Dialect returns the repository's dialect.
func (r *Repository) Dialect() Dialect { return r.d }

// ReplaceTable drops and recreates name with the columns of empty.
func (r *Repository) ReplaceTable(ctx context.Context, name string, empty *table.Table) error {
	def, err := ddl.FromSchema(name, empty.Schema(), r.d)
	if err != nil {
		return err
	}
	create, err := ddl.BuildCreateTableSQL(r.d, def)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}
	rollback := func() { _ = tx.Rollback() }

	if _, err := tx.ExecContext(ctx, ddl.BuildDropTableSQL(r.d, name)); err != nil {
		rollback()
		return fmt.Errorf("%s: drop %s: %w", r.d.Name, name, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		rollback()
		return fmt.Errorf("%s: create %s: %w", r.d.Name, name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", r.d.Name, err)
	}
	zerolog.Ctx(ctx).Debug().Str("table", name).Str("kind", r.d.Name).Msg("table recreated")
	return nil
}

// CopyFrom appends rows with multi-row INSERTs in a single transaction.
func (r *Repository) CopyFrom(ctx context.Context, name string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: CopyFrom: columns must not be empty", r.d.Name)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("%s: CopyFrom: row %d has %d values for %d columns", r.d.Name, i, len(row), len(columns))
		}
	}

	per := len(rows)
	if r.d.MaxParams > 0 {
		per = max(1, r.d.MaxParams/len(columns))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}

	var inserted int64
	for lo := 0; lo < len(rows); lo += per {
		chunk := rows[lo:min(lo+per, len(rows))]
		stmt, args := r.insertSQL(name, columns, chunk)
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: insert rows %d-%d: %w", r.d.Name, lo, lo+len(chunk)-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(len(chunk))
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.d.Name, err)
	}
	return inserted, nil
}

// insertSQL renders INSERT INTO name (cols) VALUES (...), (...) for rows and
// flattens their values into args.
func (r *Repository) insertSQL(name string, columns []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = r.d.Quote(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", ddl.QuoteFQN(r.d, name), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	n := 0
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			n++
			sb.WriteString(r.d.Placeholder(n))
			args = append(args, v)
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}
