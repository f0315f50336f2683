// Package pipeline runs one extract-load pass: trip shards and the zone
// lookup are fetched, normalized and written to the configured sink.
//
// The package depends only on the storage registry and never on a backend
// package; callers link backends by importing internal/storage/all.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"taxietl/internal/config"
	"taxietl/internal/datasource"
	"taxietl/internal/datasource/httpds"
	"taxietl/internal/logging"
	"taxietl/internal/metrics"
	"taxietl/internal/metrics/datadog"
	"taxietl/internal/metrics/prompush"
	pcsv "taxietl/internal/parser/csv"
	"taxietl/internal/parser/parquet"
	"taxietl/internal/storage"
	"taxietl/internal/table"
	"taxietl/internal/taxi"
)

// Options are per-invocation switches that do not belong in Config.
type Options struct {
	SkipZones bool
}

// Summary reports what a run did.
type Summary struct {
	RunID         string
	Shards        []taxi.ShardResult
	TripRows      int
	TripsInserted int64
	ZonesInserted int64
	Elapsed       time.Duration
}

// FailedShards counts shards that were skipped.
func (s Summary) FailedShards() int {
	n := 0
	for _, r := range s.Shards {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Test seams.
var (
	openRepositoryFn = storage.New
	nowFn            = func() time.Time { return time.Now().UTC() }
)

// Run executes a full pass with cfg. The logger is taken from ctx and tagged
// with a fresh run_id. Config errors abort before any I/O; a failing shard is
// skipped; any sink error aborts the run.
func Run(ctx context.Context, cfg *config.Config, opts Options) (Summary, error) {
	ctx, runID := logging.WithRun(ctx, *zerolog.Ctx(ctx))
	log := zerolog.Ctx(ctx)
	sum := Summary{RunID: runID}
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return sum, err
	}
	w, err := cfg.Window()
	if err != nil {
		return sum, err
	}
	types, err := cfg.Types()
	if err != nil {
		return sum, err
	}
	format, err := cfg.Format()
	if err != nil {
		return sum, err
	}
	decode, err := DecoderFor(format)
	if err != nil {
		return sum, err
	}

	log.Info().
		Time("start", w.Start).
		Time("end", w.End).
		Strs("taxi_types", cfg.TaxiTypes).
		Str("format", string(format)).
		Str("storage", cfg.Storage.Kind).
		Int("batch_size", cfg.BatchSize).
		Msg("run started")

	router := datasource.NewRouter(httpds.Config{Timeout: cfg.HTTPTimeout})
	defer func() {
		if err := router.Close(); err != nil {
			log.Warn().Err(err).Msg("close datasources")
		}
	}()

	// Open the sink first so a bad DSN fails before any download.
	repo, err := openRepositoryFn(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.DSN()})
	if err != nil {
		return sum, fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	fetcher := &taxi.Fetcher{
		BaseURL: cfg.TripsBaseURL,
		Format:  format,
		Fetch:   router.Fetch,
		Decode:  decode,
		Workers: cfg.FetchWorkers,
		Job:     cfg.JobName,
	}
	trips, results, err := fetcher.FetchTrips(ctx, types, w, nowFn())
	sum.Shards = results
	if err != nil {
		return sum, fmt.Errorf("fetch trips: %w", err)
	}
	sum.TripRows = trips.NumRows()

	loadOpts := storage.Options{BatchSize: cfg.BatchSize, Job: cfg.JobName}
	sum.TripsInserted, err = storage.Load(ctx, repo, cfg.TripsTable, trips, loadOpts)
	if err != nil {
		return sum, err
	}

	if opts.SkipZones {
		log.Info().Msg("zone lookup skipped")
	} else {
		zones, err := fetchZones(ctx, router, cfg.ZonesURL, cfg.JobName)
		if err != nil {
			return sum, err
		}
		sum.ZonesInserted, err = storage.Load(ctx, repo, cfg.ZonesTable, zones, loadOpts)
		if err != nil {
			return sum, err
		}
	}

	sum.Elapsed = time.Since(start)
	log.Info().
		Int("shards", len(results)).
		Int("shards_failed", sum.FailedShards()).
		Int64("trips_inserted", sum.TripsInserted).
		Int64("zones_inserted", sum.ZonesInserted).
		Dur("elapsed", sum.Elapsed.Truncate(time.Millisecond)).
		Msg("run completed")
	return sum, nil
}

// DecoderFor returns the shard decoder for format.
func DecoderFor(format taxi.Format) (taxi.DecodeFunc, error) {
	switch format {
	case taxi.FormatParquet:
		return parquet.ReadTable, nil
	case taxi.FormatCSVGzip:
		return func(_ context.Context, data []byte) (*table.Table, error) {
			return pcsv.ReadTable(bytes.NewReader(data), pcsv.TripTypes)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported trips format %q", format)
	}
}

func fetchZones(ctx context.Context, router *datasource.Router, url, job string) (*table.Table, error) {
	start := time.Now()
	zones, err := readZones(ctx, router, url)
	metrics.RecordStep(job, "fetch_zones", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("zone lookup %s: %w", url, err)
	}
	zerolog.Ctx(ctx).Info().Int("rows", zones.NumRows()).Msg("zone lookup decoded")
	return zones, nil
}

func readZones(ctx context.Context, router *datasource.Router, url string) (*table.Table, error) {
	data, err := router.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return pcsv.ReadZones(bytes.NewReader(data))
}

// SetupMetrics installs the metrics backend named by cfg.Metrics.Backend and
// returns a flush function to defer. Unknown or failing backends fall back
// to the no-op backend with a warning.
func SetupMetrics(ctx context.Context, cfg *config.Config) func() {
	log := zerolog.Ctx(ctx)
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.JobName, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{Addr: cfg.Metrics.DogStatsDAddr, Job: cfg.JobName})
	case "", "none":
		log.Debug().Msg("metrics disabled")
		return func() {}
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Metrics.Backend)
	}
	if err != nil {
		log.Warn().Err(err).Msg("metrics: falling back to nop backend")
		return func() {}
	}

	log.Info().Str("backend", cfg.Metrics.Backend).Str("job", cfg.JobName).Msg("metrics enabled")
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics: flush")
		}
	}
}
