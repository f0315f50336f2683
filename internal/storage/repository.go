// Package storage contains the sink contract, the backend registry and the
// chunked table loader. Backends live in subpackages and register themselves
// by kind from init; import internal/storage/all to link every one of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"taxietl/internal/table"
)

// Repository is a relational sink for typed tables.
type Repository interface {
	// ReplaceTable drops name if it exists and recreates it with the columns
	// of empty. Rows in empty are ignored.
	ReplaceTable(ctx context.Context, name string, empty *table.Table) error

	// CopyFrom appends rows (aligned to columns) to name and returns the
	// number of rows written. A nil cell is written as NULL.
	CopyFrom(ctx context.Context, name string, columns []string, rows [][]any) (int64, error)

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
