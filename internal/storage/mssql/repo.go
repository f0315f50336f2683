// Package mssql implements storage.Repository on Microsoft SQL Server. Tables
// are recreated through the shared sqldb implementation; rows are appended
// with the go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"taxietl/internal/storage/sqldb"
	"taxietl/internal/table"
)

// Dialect is the SQL Server flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:   "mssql",
	Driver: "sqlserver",
	Quote:  msIdent,
	Types: map[table.Kind]string{
		table.KindString:    "NVARCHAR(MAX)",
		table.KindInt64:     "BIGINT",
		table.KindFloat64:   "FLOAT",
		table.KindBool:      "BIT",
		table.KindTimestamp: "DATETIME2",
	},
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	MaxParams:   2100,
}

// msIdent brackets a single identifier, escaping closing brackets.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	r, closeFn, err := sqldb.Open(ctx, Dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}

// CopyFrom bulk-inserts rows into name inside one transaction.
func (r *Repository) CopyFrom(ctx context.Context, name string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(name, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
