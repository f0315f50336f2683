// Package metrics records what a taxietl run did: shards fetched per taxi
// type, rows fetched and inserted, batches appended, and step timings.
//
// Call sites use the Record* helpers only. The concrete system (Pushgateway,
// DogStatsD) is installed once at startup with SetBackend; until then every
// helper is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Metric families.
const (
	ShardsTotal   = "taxietl_shards_total"
	ShardDuration = "taxietl_shard_fetch_seconds"
	RecordsTotal  = "taxietl_records_total"
	BatchesTotal  = "taxietl_batches_total"
	StepTotal     = "taxietl_step_total"
	StepDuration  = "taxietl_step_duration_seconds"
)

// Record kinds used with RecordRow.
const (
	KindFetched  = "fetched"
	KindInserted = "inserted"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives counter increments and duration observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush is called once when the run ends.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b and returns a func that restores the previous
// backend. A nil b leaves the current backend in place.
func SetBackend(b Backend) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := backend
	if b != nil {
		backend = b
	}
	return func() {
		mu.Lock()
		backend = prev
		mu.Unlock()
	}
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordShard counts one shard attempt and its fetch+decode+normalize time.
func RecordShard(job, taxiType string, err error, d time.Duration) {
	lbls := Labels{"job": job, "taxi_type": taxiType, "status": status(err)}
	b := current()
	b.IncCounter(ShardsTotal, 1, lbls)
	b.ObserveHistogram(ShardDuration, d.Seconds(), lbls)
}

// RecordStep counts and times a named sink or lookup step such as
// replace_table, copy_batch or fetch_zones.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": status(err)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of kind (KindFetched or KindInserted).
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta appended batches for table.
func RecordBatches(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job, "table": table})
}
