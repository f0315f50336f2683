// Package mysql implements storage.Repository on MySQL through
// go-sql-driver/mysql and the shared sqldb implementation.
package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"taxietl/internal/storage/sqldb"
	"taxietl/internal/table"
)

// Dialect is the MySQL flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:   "mysql",
	Driver: "mysql",
	Quote:  quoteIdent,
	Types: map[table.Kind]string{
		table.KindString:    "TEXT",
		table.KindInt64:     "BIGINT",
		table.KindFloat64:   "DOUBLE",
		table.KindBool:      "BOOLEAN",
		table.KindTimestamp: "DATETIME(6)",
	},
	Placeholder: sqldb.QuestionMark,
	MaxParams:   65535,
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// Config holds MySQL repository configuration.
type Config struct {
	DSN string // go-sql-driver DSN, e.g. root:root@tcp(localhost:3306)/ny_taxi
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// normalizeDSN parses dsn and pins the session to UTC with parsed times so
// naive timestamps round-trip unchanged.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	r, closeFn, err := sqldb.Open(ctx, Dialect, dsn)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}
