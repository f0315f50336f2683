package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"taxietl/internal/metrics"
	"taxietl/internal/table"
)

// DefaultBatchSize is used when Options.BatchSize is zero.
const DefaultBatchSize = 100_000

// Progress is reported after every appended batch.
type Progress struct {
	Batch    int // 1-based
	Batches  int
	Rows     int64
	Inserted int64
}

// Options tune Load.
type Options struct {
	BatchSize int
	Progress  func(Progress)
	Job       string
}

// Load writes t into name on repo in sequential batches of BatchSize rows.
// The table is recreated once from the empty projection of t before any rows
// are appended, so a zero-row table still gets its schema. The first failing
// write aborts the load; rows already appended stay in the sink.
func Load(ctx context.Context, repo Repository, name string, t *table.Table, opts Options) (int64, error) {
	size := opts.BatchSize
	if size == 0 {
		size = DefaultBatchSize
	}
	if size < 0 {
		return 0, fmt.Errorf("storage: batch size must be > 0, got %d", size)
	}
	if repo == nil {
		return 0, fmt.Errorf("storage: repository must not be nil")
	}

	log := zerolog.Ctx(ctx).With().Str("table", name).Logger()
	rows := t.NumRows()
	batches := (rows + size - 1) / size
	columns := t.Names()

	start := time.Now()
	err := repo.ReplaceTable(ctx, name, t.Head(0))
	metrics.RecordStep(opts.Job, "replace_table", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("storage: create %s: %w", name, err)
	}
	log.Info().Int("rows", rows).Int("batches", batches).Msg("table replaced")

	var (
		total     int64
		lastFlush = start
	)
	for i := 0; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		lo := i * size
		hi := min(lo+size, rows)
		n, err := repo.CopyFrom(ctx, name, columns, t.Slice(lo, hi).Rows())
		total += n
		metrics.RecordStep(opts.Job, "copy_batch", err, time.Since(lastFlush))
		if err != nil {
			log.Error().Err(err).Int("batch", i+1).Int64("total_inserted", total).Msg("copy failed")
			return total, fmt.Errorf("storage: batch %d/%d into %s: %w", i+1, batches, name, err)
		}
		metrics.RecordBatches(opts.Job, name, 1)
		metrics.RecordRow(opts.Job, metrics.KindInserted, n)

		now := time.Now()
		since := now.Sub(lastFlush)
		var rps int64
		if since > 0 {
			rps = int64(float64(n) / since.Seconds())
		}
		log.Info().
			Str("batch", fmt.Sprintf("%d/%d", i+1, batches)).
			Int("rows", hi-lo).
			Int64("inserted", n).
			Int64("total_inserted", total).
			Int64("rps", rps).
			Dur("elapsed", now.Sub(start).Truncate(time.Millisecond)).
			Msg("batch loaded")
		lastFlush = now

		if opts.Progress != nil {
			opts.Progress(Progress{Batch: i + 1, Batches: batches, Rows: int64(hi - lo), Inserted: total})
		}
	}
	return total, nil
}
