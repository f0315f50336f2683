// Command taxietl fetches NYC TLC trip shards and the taxi zone lookup and
// loads both into the configured relational sink.
//
// Settings come from the environment and, with -config, from a YAML, JSON,
// TOML or .env file (environment wins). Run with -h to list every variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	// Zone names in shard files must resolve on hosts without a tz database.
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"taxietl/internal/config"
	"taxietl/internal/logging"
	"taxietl/internal/pipeline"
	"taxietl/internal/storage"
	"taxietl/internal/taxi"

	// register all backends with the storage factory.
	// config selects which one is used; the binary links every one.
	_ "taxietl/internal/storage/all"
)

func main() {
	var (
		cfgPath     string
		validate    bool
		printSchema bool
		skipZones   bool
	)

	flag.StringVar(&cfgPath, "config", "", "optional config file (YAML, JSON, TOML or .env); environment overrides it")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&printSchema, "print-schema", false, "print CREATE TABLE statements for the configured storage kind and exit")
	flag.BoolVar(&skipZones, "skip-zones", false, "do not load the taxi zone lookup")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output(), config.Usage())
	}
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		fatalf("logging: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	hasError := false
	for _, iss := range cfg.Lint() {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		logger.Error().Str("config", cfgPath).Msg("configuration is invalid")
		os.Exit(1)
	}

	if validate {
		logger.Info().Str("config", cfgPath).Msg("configuration is valid")
		return
	}

	if printSchema {
		if err := writeSchema(cfg); err != nil {
			fatalf("print schema: %v", err)
		}
		return
	}

	flush := pipeline.SetupMetrics(ctx, cfg)
	sum, err := pipeline.Run(ctx, cfg, pipeline.Options{SkipZones: skipZones})
	flush()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("run_id", sum.RunID).Msg("run failed")
		stop()
		os.Exit(1)
	}
}

func writeSchema(cfg *config.Config) error {
	trips, err := storage.CreateTableSQL(cfg.Storage.Kind, cfg.TripsTable, taxi.TripSchema)
	if err != nil {
		return err
	}
	zones, err := storage.CreateTableSQL(cfg.Storage.Kind, cfg.ZonesTable, taxi.ZoneSchema)
	if err != nil {
		return err
	}
	fmt.Println(trips)
	fmt.Println()
	fmt.Println(zones)
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
