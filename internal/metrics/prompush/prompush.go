// Package prompush pushes a run's metrics to a Prometheus Pushgateway when
// the run ends. The job name is the grouping key; every other label becomes
// a Prometheus label on its family.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"taxietl/internal/metrics"
)

type family struct {
	name    string
	help    string
	labels  []string
	buckets []float64 // nil for counters
}

// families lists every metric the run emits. Durations are histograms so
// pushes from successive runs aggregate in Prometheus.
var families = []family{
	{name: metrics.ShardsTotal, help: "Trip shards attempted, by taxi type and outcome.", labels: []string{"taxi_type", "status"}},
	{name: metrics.ShardDuration, help: "Seconds to fetch, decode and normalize one shard.", labels: []string{"taxi_type", "status"},
		buckets: prometheus.ExponentialBuckets(0.25, 2, 11)},
	{name: metrics.RecordsTotal, help: "Trip rows fetched and rows inserted into the sink.", labels: []string{"kind"}},
	{name: metrics.BatchesTotal, help: "Batches appended to the sink, by table.", labels: []string{"table"}},
	{name: metrics.StepTotal, help: "Sink and lookup steps, by step and outcome.", labels: []string{"step", "status"}},
	{name: metrics.StepDuration, help: "Seconds spent per sink or lookup step.", labels: []string{"step", "status"},
		buckets: prometheus.ExponentialBuckets(0.005, 4, 9)},
}

// Backend collects into a private registry and pushes it on Flush.
type Backend struct {
	pusher *push.Pusher
	reg    *prometheus.Registry

	counters map[string]*prometheus.CounterVec
	hists    map[string]*prometheus.HistogramVec
	labels   map[string][]string
}

// NewBackend registers every family and targets gatewayURL under jobName
// (default "taxietl").
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "taxietl"
	}

	b := &Backend{
		reg:      prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		hists:    make(map[string]*prometheus.HistogramVec),
		labels:   make(map[string][]string),
	}
	for _, f := range families {
		var c prometheus.Collector
		if f.buckets == nil {
			v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: f.name, Help: f.help}, f.labels)
			b.counters[f.name] = v
			c = v
		} else {
			v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: f.name, Help: f.help, Buckets: f.buckets}, f.labels)
			b.hists[f.name] = v
			c = v
		}
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", f.name, err)
		}
		b.labels[f.name] = f.labels
	}
	b.pusher = push.New(gatewayURL, jobName).Gatherer(b.reg)
	return b, nil
}

func (b *Backend) values(name string, lbls metrics.Labels) []string {
	keys := b.labels[name]
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = lbls[k]
	}
	return out
}

// IncCounter adds delta to a known counter family; other names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if v, ok := b.counters[name]; ok {
		v.WithLabelValues(b.values(name, labels)...).Add(delta)
	}
}

// ObserveHistogram records value in a known histogram family.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if v, ok := b.hists[name]; ok {
		v.WithLabelValues(b.values(name, labels)...).Observe(value)
	}
}

// Gatherer exposes the registry, e.g. for a final log of pushed values.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

// Flush replaces the job's group on the Pushgateway with this run's values.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
