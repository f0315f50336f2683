package prompush

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"taxietl/internal/metrics"
)

// sample returns the counter value (or histogram sample count) of the series
// in family name whose labels equal want.
func sample(t *testing.T, b *Backend, name string, want map[string]string) float64 {
	t.Helper()
	mfs, err := b.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsEqual(m.GetLabel(), want) {
				continue
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				return m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func labelsEqual(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) != len(want) {
		return false
	}
	for _, lp := range got {
		if want[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

// TestBackend_RunFlow records what a two-shard run with one failure emits
// through the metrics helpers and checks the resulting Prometheus series.
// It installs the global backend, so it does not run in parallel.
func TestBackend_RunFlow(t *testing.T) {
	b, err := NewBackend("nightly", "http://127.0.0.1:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	t.Cleanup(metrics.SetBackend(b))

	metrics.RecordShard("nightly", "yellow", nil, 4*time.Second)
	metrics.RecordShard("nightly", "green", errors.New("status 403"), 300*time.Millisecond)
	metrics.RecordRow("nightly", metrics.KindFetched, 2_964_624)
	metrics.RecordStep("nightly", "replace_table", nil, 20*time.Millisecond)
	for i := 0; i < 3; i++ {
		metrics.RecordStep("nightly", "copy_batch", nil, time.Second)
		metrics.RecordBatches("nightly", "taxi_trips", 1)
	}
	metrics.RecordRow("nightly", metrics.KindInserted, 2_964_624)

	cases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{metrics.ShardsTotal, map[string]string{"taxi_type": "yellow", "status": "success"}, 1},
		{metrics.ShardsTotal, map[string]string{"taxi_type": "green", "status": "failure"}, 1},
		{metrics.ShardDuration, map[string]string{"taxi_type": "yellow", "status": "success"}, 1},
		{metrics.RecordsTotal, map[string]string{"kind": "fetched"}, 2_964_624},
		{metrics.RecordsTotal, map[string]string{"kind": "inserted"}, 2_964_624},
		{metrics.BatchesTotal, map[string]string{"table": "taxi_trips"}, 3},
		{metrics.StepTotal, map[string]string{"step": "copy_batch", "status": "success"}, 3},
		{metrics.StepDuration, map[string]string{"step": "replace_table", "status": "success"}, 1},
	}
	for _, tc := range cases {
		if got := sample(t, b, tc.name, tc.labels); got != tc.want {
			t.Errorf("%s%v = %v, want %v", tc.name, tc.labels, got, tc.want)
		}
	}
}

func TestBackend_UnknownFamilyDropped(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("", "http://127.0.0.1:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter("taxietl_unknown_total", 1, nil)
	b.ObserveHistogram(metrics.ShardsTotal, 1, nil) // counter family, not a histogram

	mfs, err := b.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) != 0 {
		t.Fatalf("gathered %d families, want none before any known sample", len(mfs))
	}
}

func TestFlush_PushesJobGroup(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		method  string
		path    string
		payload int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path, payload = r.Method, r.URL.Path, r.ContentLength
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("taxi_nightly", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.ShardsTotal, 1, metrics.Labels{"taxi_type": "yellow", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/metrics/job/taxi_nightly" {
		t.Fatalf("push = %s %s, want PUT /metrics/job/taxi_nightly", method, path)
	}
	if payload == 0 {
		t.Fatalf("push carried no samples")
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "read-only", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := NewBackend("taxietl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("expected error from a 503 gateway")
	}
}

func TestNewBackend_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("taxietl", ""); err == nil {
		t.Fatalf("expected error for empty gateway URL")
	}
}
