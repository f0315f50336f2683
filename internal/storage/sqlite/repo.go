// Package sqlite implements storage.Repository on SQLite using the pure-Go
// modernc.org/sqlite driver. SQLite has no bulk-load API like Postgres COPY;
// rows go through multi-row INSERTs inside one transaction per batch.
package sqlite

import (
	"context"
	"strings"

	_ "modernc.org/sqlite"

	"taxietl/internal/storage/sqldb"
	"taxietl/internal/table"
)

// maxParams is SQLite's historical SQLITE_MAX_VARIABLE_NUMBER.
const maxParams = 999

// Dialect is the SQLite flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	Quote:  quoteIdent,
	Types: map[table.Kind]string{
		table.KindString:    "TEXT",
		table.KindInt64:     "INTEGER",
		table.KindFloat64:   "REAL",
		table.KindBool:      "BOOLEAN",
		table.KindTimestamp: "TIMESTAMP",
	},
	Placeholder: sqldb.QuestionMark,
	MaxParams:   maxParams,
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:ny_taxi.db?_pragma=busy_timeout(5000)"
	//   "ny_taxi.db"
	DSN string
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository opens the database at cfg.DSN and returns a Repository plus
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	r, closeFn, err := sqldb.Open(ctx, Dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}
