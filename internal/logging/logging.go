// Package logging builds the root zerolog logger. Libraries never hold a
// logger; they read it from the context with zerolog.Ctx.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New returns a logger writing JSON to w, or human-readable console output
// when pretty is set. An empty level means info.
func New(w io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), err
		}
		lvl = l
	}
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// WithRun attaches a fresh run_id to logger, stores the result in ctx and
// returns both the context and the id.
func WithRun(ctx context.Context, logger zerolog.Logger) (context.Context, string) {
	id := uuid.NewString()
	l := logger.With().Str("run_id", id).Logger()
	return l.WithContext(ctx), id
}
