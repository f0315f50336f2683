package taxi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"taxietl/internal/metrics"
	"taxietl/internal/metrics/metricstest"
	"taxietl/internal/parser/parquet"
	"taxietl/internal/table"
)

var (
	testExtractedAt = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	january         = Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
)

// rawTrips builds a shard shaped like a TLC file. prefix is "tpep" for yellow
// and "lpep" for green; zone is the pickup/dropoff series zone.
func rawTrips(prefix, zone string, pickups ...time.Time) *table.Table {
	vendor := table.NewSeries("VendorID", table.KindInt64)
	pu := table.NewTimestampSeries(prefix+"_pickup_datetime", zone)
	do := table.NewTimestampSeries(prefix+"_dropoff_datetime", zone)
	pc := table.NewSeries("passenger_count", table.KindFloat64)
	dist := table.NewSeries("trip_distance", table.KindFloat64)
	fare := table.NewSeries("fare_amount", table.KindFloat64)
	tip := table.NewSeries("tip_amount", table.KindFloat64)
	total := table.NewSeries("total_amount", table.KindFloat64)
	pay := table.NewSeries("payment_type", table.KindInt64)
	extra := table.NewSeries("RatecodeID", table.KindFloat64)

	for i, p := range pickups {
		vendor.AppendInt64(int64(i%2 + 1))
		pu.AppendTime(p)
		do.AppendTime(p.Add(15 * time.Minute))
		pc.AppendFloat64(float64(i + 1))
		dist.AppendFloat64(1.5)
		fare.AppendFloat64(10)
		tip.AppendFloat64(2)
		total.AppendFloat64(12)
		pay.AppendInt64(1)
		extra.AppendFloat64(1)
	}
	return table.MustNew(vendor, pu, do, pc, dist, fare, tip, total, pay, extra)
}

func jan(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

// TestNormalize_CanonicalOrderAcrossVariants checks that yellow and green
// shards end up with the same canonical columns and kinds.
func TestNormalize_CanonicalOrderAcrossVariants(t *testing.T) {
	t.Parallel()

	y, err := Normalize(rawTrips("tpep", "", jan(2, 1)), Yellow, january, testExtractedAt)
	if err != nil {
		t.Fatalf("Normalize yellow: %v", err)
	}
	g, err := Normalize(rawTrips("lpep", "", jan(3, 1)), Green, january, testExtractedAt)
	if err != nil {
		t.Fatalf("Normalize green: %v", err)
	}
	for _, got := range []*table.Table{y, g} {
		if !got.Schema().Equal(TripSchema) {
			t.Fatalf("schema = %v, want %v", got.Schema(), TripSchema)
		}
	}
	if _, ok := y.Column(ColPaymentType); ok {
		t.Fatalf("payment_type should be renamed")
	}
}

// TestNormalize_Values covers trip_id, casting, extracted_at and the rename.
func TestNormalize_Values(t *testing.T) {
	t.Parallel()

	raw := rawTrips("tpep", "", jan(2, 1), jan(2, 2))
	pc, _ := raw.Column("passenger_count")
	nan := table.NewSeries("passenger_count", table.KindFloat64)
	nan.AppendFloat64(math.NaN())
	nan.AppendFloat64(pc.Float64(1))
	raw, err := raw.With(nan)
	if err != nil {
		t.Fatalf("With: %v", err)
	}

	got, err := Normalize(raw, Yellow, january, testExtractedAt)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	ids, _ := got.Column(ColTripID)
	if ids.Str(0) != "0_20240201120000" || ids.Str(1) != "1_20240201120000" {
		t.Fatalf("trip ids = %q %q", ids.Str(0), ids.Str(1))
	}
	count, _ := got.Column(ColPassengerCount)
	if !count.IsNull(0) || count.Int64(1) != 2 {
		t.Fatalf("passenger_count = %v %v, want nil 2", count.Value(0), count.Value(1))
	}
	pay, _ := got.Column(ColPaymentTypeID)
	if pay.Int64(0) != 1 {
		t.Fatalf("payment_type_id = %v", pay.Value(0))
	}
	at, _ := got.Column(ColExtractedAt)
	if at.Zone() != "" || !at.Time(1).Equal(testExtractedAt) {
		t.Fatalf("extracted_at = %v zone %q", at.Time(1), at.Zone())
	}
}

// TestNormalize_WindowInclusive keeps pickups at both bounds and drops the
// rest; trip ids keep the raw row position.
func TestNormalize_WindowInclusive(t *testing.T) {
	t.Parallel()

	raw := rawTrips("tpep", "",
		january.Start.Add(-time.Second), // 0: before
		january.Start,                   // 1: start bound
		january.End,                     // 2: end bound
		january.End.Add(time.Second),    // 3: after
	)
	got, err := Normalize(raw, Yellow, january, testExtractedAt)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}
	ids, _ := got.Column(ColTripID)
	for i, want := range []string{"1_", "2_"} {
		if !strings.HasPrefix(ids.Str(i), want) {
			t.Fatalf("trip_id[%d] = %q, want prefix %q", i, ids.Str(i), want)
		}
	}
}

// TestNormalize_ZonedPickupComparedInUTC filters zoned timestamps by their
// UTC instant.
func TestNormalize_ZonedPickupComparedInUTC(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	// 2023-12-31 20:00 EST is 2024-01-01 01:00 UTC.
	raw := rawTrips("tpep", "EST", time.Date(2023, 12, 31, 20, 0, 0, 0, est))
	got, err := Normalize(raw, Yellow, january, testExtractedAt)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", got.NumRows())
	}
}

func TestNormalize_AliasPrecedence(t *testing.T) {
	t.Parallel()

	raw := rawTrips("tpep", "", jan(2, 1))
	alt := table.NewSeries("vendor_id", table.KindInt64)
	alt.AppendInt64(99)
	raw, err := raw.With(alt)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	got, err := Normalize(raw, Yellow, january, testExtractedAt)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	v, _ := got.Column(ColVendorID)
	if v.Int64(0) != 1 {
		t.Fatalf("vendor_id = %d, want value from VendorID", v.Int64(0))
	}
}

func TestNormalize_MissingColumn(t *testing.T) {
	t.Parallel()

	raw := rawTrips("tpep", "", jan(2, 1))
	names := raw.Names()
	var keep []string
	for _, n := range names {
		if n != "fare_amount" {
			keep = append(keep, n)
		}
	}
	raw, err := raw.Select(keep...)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	_, err = Normalize(raw, Yellow, january, testExtractedAt)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestWindowMonths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w    Window
		want []Month
	}{
		{name: "single", w: january, want: []Month{{2024, time.January}}},
		{
			name: "mid-month start",
			w:    Window{Start: jan(15, 0), End: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
			want: []Month{{2024, time.January}, {2024, time.February}, {2024, time.March}},
		},
		{
			name: "year boundary",
			w:    Window{Start: time.Date(2023, 12, 5, 0, 0, 0, 0, time.UTC), End: jan(2, 0)},
			want: []Month{{2023, time.December}, {2024, time.January}},
		},
		{name: "inverted", w: Window{Start: jan(2, 0), End: jan(1, 0)}, want: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.w.Months(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Months() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShardURL(t *testing.T) {
	t.Parallel()

	s := Shard{Type: Green, Year: 2019, Month: time.March}
	if got, want := s.URL("https://example.com/trip-data", FormatCSVGzip), "https://example.com/trip-data/green_tripdata_2019-03.csv.gz"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
	if got, want := s.URL("https://example.com/", FormatParquet), "https://example.com/green_tripdata_2019-03.parquet"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
}

// fakeFetcher serves fixture tables keyed by URL. URLs without a fixture fail.
func fakeFetcher(fixtures map[string]*table.Table, calls *int32) *Fetcher {
	return &Fetcher{
		BaseURL: "https://tlc.test/",
		Format:  FormatParquet,
		Workers: 2,
		Job:     "test",
		Fetch: func(ctx context.Context, url string) ([]byte, error) {
			if calls != nil {
				atomic.AddInt32(calls, 1)
			}
			if _, ok := fixtures[url]; !ok {
				return nil, fmt.Errorf("GET %s: 404", url)
			}
			return []byte(url), nil
		},
		Decode: func(ctx context.Context, data []byte) (*table.Table, error) {
			return fixtures[string(data)], nil
		},
	}
}

// TestFetchTrips_PartialFailure: yellow fails, green succeeds, so the result
// holds only green rows and the yellow failure is reported.
func TestFetchTrips_PartialFailure(t *testing.T) {
	t.Parallel()

	f := fakeFetcher(map[string]*table.Table{
		"https://tlc.test/green_tripdata_2024-01.parquet": rawTrips("lpep", "", jan(2, 1), jan(3, 1), jan(4, 1)),
	}, nil)

	trips, results, err := f.FetchTrips(context.Background(), []Type{Yellow, Green}, january, testExtractedAt)
	if err != nil {
		t.Fatalf("FetchTrips: %v", err)
	}
	if trips.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", trips.NumRows())
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
			if r.Shard.Type != Yellow {
				t.Fatalf("unexpected failed shard %s", r.Shard)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
}

// TestFetchTrips_AllFail degrades to a typed empty table.
func TestFetchTrips_AllFail(t *testing.T) {
	t.Parallel()

	var calls int32
	f := fakeFetcher(nil, &calls)
	trips, _, err := f.FetchTrips(context.Background(), []Type{Yellow, Green}, january, testExtractedAt)
	if err != nil {
		t.Fatalf("FetchTrips: %v", err)
	}
	if trips.NumRows() != 0 || !trips.Schema().Equal(TripSchema) {
		t.Fatalf("got rows=%d schema=%v, want empty trip table", trips.NumRows(), trips.Schema())
	}
	if calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls)
	}
}

// TestFetchTrips_ConcatAndStrip sums rows across shards and returns naive
// timestamps even when a shard was zoned.
func TestFetchTrips_ConcatAndStrip(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	f := fakeFetcher(map[string]*table.Table{
		"https://tlc.test/yellow_tripdata_2024-01.parquet": rawTrips("tpep", "EST",
			time.Date(2024, 1, 5, 7, 0, 0, 0, est), time.Date(2024, 1, 6, 7, 0, 0, 0, est)),
		"https://tlc.test/green_tripdata_2024-01.parquet": rawTrips("lpep", "", jan(2, 1), jan(3, 1), jan(4, 1)),
	}, nil)

	trips, _, err := f.FetchTrips(context.Background(), []Type{Yellow, Green}, january, testExtractedAt)
	if err != nil {
		t.Fatalf("FetchTrips: %v", err)
	}
	if trips.NumRows() != 5 {
		t.Fatalf("rows = %d, want 5", trips.NumRows())
	}
	for _, name := range TimestampColumns {
		s, _ := trips.Column(name)
		if s.Zone() != "" {
			t.Fatalf("%s zone = %q, want naive", name, s.Zone())
		}
	}
	pu, _ := trips.Column(ColPickup)
	var found bool
	for i := 0; i < pu.Len(); i++ {
		if pu.Time(i).Equal(jan(5, 12)) && pu.Time(i).Location() == time.UTC {
			found = true
		}
	}
	if !found {
		t.Fatalf("zoned pickup was not converted to UTC")
	}
}

// TestFetchTrips_ZonedParquetShard decodes a real Parquet payload whose
// pickup column is zoned America/New_York and expects naive UTC pickups.
func TestFetchTrips_ZonedParquetShard(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	shard := rawTrips("tpep", "America/New_York",
		time.Date(2024, 1, 15, 8, 30, 0, 0, ny),
		time.Date(2024, 1, 30, 21, 0, 0, 0, ny))
	var buf bytes.Buffer
	if err := parquet.WriteTable(&buf, shard); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	f := &Fetcher{
		BaseURL: "https://tlc.test/",
		Format:  FormatParquet,
		Workers: 1,
		Fetch: func(ctx context.Context, url string) ([]byte, error) {
			if url != "https://tlc.test/yellow_tripdata_2024-01.parquet" {
				return nil, fmt.Errorf("GET %s: 404", url)
			}
			return buf.Bytes(), nil
		},
		Decode: parquet.ReadTable,
	}
	trips, _, err := f.FetchTrips(context.Background(), []Type{Yellow}, january, testExtractedAt)
	if err != nil {
		t.Fatalf("FetchTrips: %v", err)
	}

	pu, _ := trips.Column(ColPickup)
	if pu.Zone() != "" {
		t.Fatalf("pickup zone = %q, want naive", pu.Zone())
	}
	// 21:00 EST on Jan 30 is Jan 31 02:00 UTC, past the window end.
	want := []time.Time{time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)}
	if pu.Len() != len(want) {
		t.Fatalf("pickups = %d, want %d", pu.Len(), len(want))
	}
	for i, w := range want {
		got := pu.Time(i)
		if !got.Equal(w) || got.Location() != time.UTC || got.Hour() != w.Hour() {
			t.Fatalf("pickup[%d] = %v, want %v", i, got, w)
		}
	}
}

// TestFetchTrips_EmitsShardAndFetchedMetrics installs a recording backend,
// so it does not run in parallel.
func TestFetchTrips_EmitsShardAndFetchedMetrics(t *testing.T) {
	rec := metricstest.Install(t)

	f := fakeFetcher(map[string]*table.Table{
		"https://tlc.test/green_tripdata_2024-01.parquet": rawTrips("lpep", "", jan(2, 1), jan(3, 1), jan(4, 1)),
	}, nil)
	f.Job = "nightly"
	if _, _, err := f.FetchTrips(context.Background(), []Type{Yellow, Green}, january, testExtractedAt); err != nil {
		t.Fatalf("FetchTrips: %v", err)
	}

	cases := []struct {
		name   string
		labels metrics.Labels
		want   float64
	}{
		{metrics.ShardsTotal, metrics.Labels{"job": "nightly", "taxi_type": "yellow", "status": "failure"}, 1},
		{metrics.ShardsTotal, metrics.Labels{"taxi_type": "green", "status": "success"}, 1},
		{metrics.ShardsTotal, metrics.Labels{"taxi_type": "yellow", "status": "success"}, 0},
		{metrics.RecordsTotal, metrics.Labels{"kind": metrics.KindFetched}, 3},
		{metrics.RecordsTotal, metrics.Labels{"kind": metrics.KindInserted}, 0},
	}
	for _, tc := range cases {
		if got := rec.Counter(tc.name, tc.labels); got != tc.want {
			t.Errorf("%s%v = %v, want %v", tc.name, tc.labels, got, tc.want)
		}
	}
	if obs := rec.Observations(metrics.ShardDuration, metrics.Labels{"taxi_type": "green"}); len(obs) != 1 {
		t.Fatalf("green shard durations = %v, want one", obs)
	}
}

func TestFetchTrips_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := fakeFetcher(nil, nil)
	if _, _, err := f.FetchTrips(ctx, []Type{Yellow}, january, testExtractedAt); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestZoneTable(t *testing.T) {
	t.Parallel()

	id := int64(1)
	borough, zone := "EWR", "Newark Airport"
	got := ZoneTable([]Zone{
		{LocationID: &id, Borough: &borough, Zone: &zone},
	})
	if !got.Schema().Equal(ZoneSchema) {
		t.Fatalf("schema = %v", got.Schema())
	}
	want := []any{int64(1), "EWR", "Newark Airport", nil}
	if row := got.Row(0); !reflect.DeepEqual(row, want) {
		t.Fatalf("row = %v, want %v", row, want)
	}
}

func TestParseTypes(t *testing.T) {
	t.Parallel()

	got, err := ParseTypes([]string{" Yellow", "green", "", "yellow"})
	if err != nil {
		t.Fatalf("ParseTypes: %v", err)
	}
	if !reflect.DeepEqual(got, []Type{Yellow, Green}) {
		t.Fatalf("ParseTypes = %v", got)
	}
	if _, err := ParseTypes([]string{"purple"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
