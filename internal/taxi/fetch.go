package taxi

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"taxietl/internal/metrics"
	"taxietl/internal/table"
)

// FetchFunc returns the payload stored at url.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// DecodeFunc parses a shard payload into a raw, un-normalized table.
type DecodeFunc func(ctx context.Context, data []byte) (*table.Table, error)

// Fetcher downloads, decodes and normalizes trip shards.
type Fetcher struct {
	BaseURL string
	Format  Format
	Fetch   FetchFunc
	Decode  DecodeFunc

	// Workers bounds concurrent shard fetches. Values below 1 mean 1.
	Workers int
	// Job labels emitted metrics.
	Job string
}

// FetchTrips fetches every shard for types within w and returns one trip
// table with timezones stripped.
//
// A failing shard is logged and skipped; its result is still returned with
// Err set. When no shard succeeds the table is EmptyTrips(). The only error
// returned is ctx's, or a failure to combine successful shards.
func (f *Fetcher) FetchTrips(ctx context.Context, types []Type, w Window, extractedAt time.Time) (*table.Table, []ShardResult, error) {
	log := zerolog.Ctx(ctx)
	shards := Shards(types, w)
	results := make([]ShardResult, len(shards))

	workers := f.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range shards {
		g.Go(func() error {
			results[i] = f.fetchShard(ctx, s, w, extractedAt)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, results, err
	}

	var ok []*table.Table
	for _, r := range results {
		if !r.OK() {
			log.Warn().Err(r.Err).Str("shard", r.Shard.String()).Str("url", r.URL).Msg("skipping shard")
			continue
		}
		log.Info().Str("shard", r.Shard.String()).Int("rows", r.Table.NumRows()).Msg("shard normalized")
		ok = append(ok, r.Table)
	}

	if len(ok) == 0 {
		log.Warn().Int("shards", len(shards)).Msg("no trip shard could be fetched, continuing with an empty table")
		return EmptyTrips(), results, nil
	}

	trips, err := table.Concat(ok...)
	if err != nil {
		return nil, results, fmt.Errorf("combine shards: %w", err)
	}
	trips, err = table.StripTimezones(trips, TimestampColumns...)
	if err != nil {
		return nil, results, err
	}
	metrics.RecordRow(f.Job, metrics.KindFetched, int64(trips.NumRows()))
	return trips, results, nil
}

func (f *Fetcher) fetchShard(ctx context.Context, s Shard, w Window, extractedAt time.Time) ShardResult {
	start := time.Now()
	res := ShardResult{Shard: s, URL: s.URL(f.BaseURL, f.Format)}
	res.Table, res.Err = f.loadShard(ctx, res.URL, s, w, extractedAt)
	metrics.RecordShard(f.Job, string(s.Type), res.Err, time.Since(start))
	return res
}

func (f *Fetcher) loadShard(ctx context.Context, url string, s Shard, w Window, extractedAt time.Time) (*table.Table, error) {
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	raw, err := f.Decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.FileName(f.Format), err)
	}
	return Normalize(raw, s.Type, w, extractedAt)
}
