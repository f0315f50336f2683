package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// ErrInvalid wraps every error returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged and the run continues.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single finding. Path names the setting by its
// environment variable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// StorageKinds lists the sink kinds the binary links.
var StorageKinds = []string{"postgres", "sqlite", "mysql", "mssql", "bigquery"}

var metricsBackends = []string{"none", "pushgateway", "datadog"}

// Lint checks c without touching the network and returns every issue found.
func (c *Config) Lint() []Issue {
	var issues []Issue
	fail := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warn := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if w, err := c.Window(); err != nil {
		fail("START_DATE/END_DATE", "%v", err)
	} else if w.End.Before(w.Start) {
		fail("END_DATE", "end %s is before start %s", w.End.Format("2006-01-02"), w.Start.Format("2006-01-02"))
	}

	if types, err := c.Types(); err != nil {
		fail("TAXI_TYPES", "%v", err)
	} else if len(types) == 0 {
		fail("TAXI_TYPES", "at least one taxi type is required")
	} else if len(types) < len(nonEmpty(c.TaxiTypes)) {
		warn("TAXI_TYPES", "duplicate entries in %v are fetched once", c.TaxiTypes)
	}
	if _, err := c.Format(); err != nil {
		fail("TRIPS_FORMAT", "%v", err)
	}

	checkURL := func(path, raw string) {
		u, err := url.Parse(raw)
		switch {
		case strings.TrimSpace(raw) == "":
			fail(path, "must not be empty")
		case err != nil:
			fail(path, "%v", err)
		case u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "gs":
			if u.Host == "" {
				fail(path, "%q has no host", raw)
			}
		case u.Scheme == "" || u.Scheme == "file":
		default:
			fail(path, "unsupported scheme %q", u.Scheme)
		}
	}
	checkURL("TRIPS_BASE_URL", c.TripsBaseURL)
	checkURL("ZONES_URL", c.ZonesURL)

	if strings.TrimSpace(c.TripsTable) == "" {
		fail("TRIPS_TABLE", "must not be empty")
	}
	if strings.TrimSpace(c.ZonesTable) == "" {
		fail("ZONES_TABLE", "must not be empty")
	}

	if !slices.Contains(StorageKinds, c.Storage.Kind) {
		fail("STORAGE_KIND", "unknown kind %q (want one of %s)", c.Storage.Kind, strings.Join(StorageKinds, ", "))
	} else if c.DSN() == "" {
		fail("DB_DSN", "required for storage kind %s", c.Storage.Kind)
	}

	if c.BatchSize <= 0 {
		fail("BATCH_SIZE", "must be > 0, got %d", c.BatchSize)
	}
	if c.FetchWorkers <= 0 {
		fail("FETCH_WORKERS", "must be > 0, got %d", c.FetchWorkers)
	}
	if c.HTTPTimeout <= 0 {
		fail("HTTP_TIMEOUT", "must be > 0, got %s", c.HTTPTimeout)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		fail("LOG_LEVEL", "%v", err)
	}
	if !slices.Contains(metricsBackends, c.Metrics.Backend) {
		fail("METRICS_BACKEND", "unknown backend %q (want one of %s)", c.Metrics.Backend, strings.Join(metricsBackends, ", "))
	}
	return issues
}

// Validate returns nil when Lint reports no errors. Otherwise every error is
// joined under ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	for _, iss := range c.Lint() {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
