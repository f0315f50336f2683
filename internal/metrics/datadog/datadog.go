// Package datadog sends a run's metrics to a DogStatsD agent.
//
// Family names lose their "taxietl_" prefix and "_total"/"_seconds" suffix
// and are emitted under Namespace, e.g. taxietl_shards_total becomes
// "taxietl.shards". Labels become "key:value" tags; the job label is dropped
// because the job is a global tag.
package datadog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"taxietl/internal/metrics"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "taxietl."

// Config holds the agent address and global tags.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket".
	Addr string
	// Namespace defaults to DefaultNamespace.
	Namespace string
	// Job is added as the global tag "job:<Job>" when set.
	Job  string
	Tags []string
}

// client is the part of *statsd.Client the backend uses.
type client interface {
	Count(name string, value int64, tags []string, rate float64) error
	Distribution(name string, value float64, tags []string, rate float64) error
	Close() error
}

// Backend implements metrics.Backend on DogStatsD.
type Backend struct {
	c client
}

// NewBackend dials the agent described by cfg.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	tags := append([]string(nil), cfg.Tags...)
	if cfg.Job != "" {
		tags = append(tags, "job:"+cfg.Job)
	}

	c, err := statsd.New(cfg.Addr, statsd.WithNamespace(ns), statsd.WithTags(tags))
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{c: c}, nil
}

// statName maps a metrics family to its DogStatsD name.
func statName(family string) string {
	s := strings.TrimPrefix(family, "taxietl_")
	s = strings.TrimSuffix(s, "_total")
	return strings.TrimSuffix(s, "_seconds")
}

// IncCounter sends a Count. Row counters arrive whole, so truncation is
// exact.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	_ = b.c.Count(statName(name), int64(delta), tags(labels), 1)
}

// ObserveHistogram sends a Distribution so percentiles are computed
// server-side across hosts.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	_ = b.c.Distribution(statName(name), value, tags(labels), 1)
}

// Flush drains buffered samples and closes the client; the run is over.
func (b *Backend) Flush() error {
	if err := b.c.Close(); err != nil {
		return fmt.Errorf("datadog: close: %w", err)
	}
	return nil
}

func tags(lbls metrics.Labels) []string {
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		if k == "job" || v == "" {
			continue
		}
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
