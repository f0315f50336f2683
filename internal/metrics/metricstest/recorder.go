// Package metricstest provides an in-memory metrics.Backend for tests.
package metricstest

import (
	"sync"

	"taxietl/internal/metrics"
)

// Sample is one recorded call.
type Sample struct {
	Name   string
	Value  float64
	Labels metrics.Labels
}

// Recorder keeps every counter increment and observation.
type Recorder struct {
	mu       sync.Mutex
	counters []Sample
	observed []Sample
	flushes  int
}

func (r *Recorder) IncCounter(name string, delta float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, Sample{name, delta, labels})
}

func (r *Recorder) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = append(r.observed, Sample{name, value, labels})
}

func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

// Install makes r the global backend until the test ends. Tests that call it
// must not run in parallel.
func Install(t interface{ Cleanup(func()) }) *Recorder {
	r := &Recorder{}
	t.Cleanup(metrics.SetBackend(r))
	return r
}

// Counter sums the increments of name whose labels include every pair in
// match.
func (r *Recorder) Counter(name string, match metrics.Labels) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, s := range r.counters {
		if s.Name == name && contains(s.Labels, match) {
			sum += s.Value
		}
	}
	return sum
}

// Observations returns the values observed for name whose labels include
// every pair in match.
func (r *Recorder) Observations(name string, match metrics.Labels) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, s := range r.observed {
		if s.Name == name && contains(s.Labels, match) {
			out = append(out, s.Value)
		}
	}
	return out
}

// Flushes reports how often Flush was called.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func contains(have, want metrics.Labels) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
