package taxi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taxietl/internal/table"
)

// ErrMissingColumn is returned when a shard has none of the source names
// accepted for a canonical field.
var ErrMissingColumn = errors.New("missing source column")

// Window is an inclusive pickup time range, compared in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether start <= t <= end.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && !t.After(w.End)
}

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// Months returns every calendar month that intersects the window, in order.
func (w Window) Months() []Month {
	if w.End.Before(w.Start) {
		return nil
	}
	var out []Month
	cur := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(w.End.Year(), w.End.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		out = append(out, Month{Year: cur.Year(), Month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// Normalize maps a raw shard onto TripSchema.
//
// Source columns are matched case-insensitively through the alias table and
// cast to the canonical kinds. trip_id is "{row}_{extractedAt}" where row is
// the position in raw, so it is only unique within one call. Rows whose pickup
// falls outside w are dropped. Zoned timestamps keep their zone; callers strip
// zones after concatenation.
func Normalize(raw *table.Table, taxiType Type, w Window, extractedAt time.Time) (*table.Table, error) {
	byName := make(map[string]*table.Series, raw.NumCols())
	for i := 0; i < raw.NumCols(); i++ {
		s := raw.ColumnAt(i)
		name := strings.ToLower(strings.TrimSpace(s.Name()))
		if _, dup := byName[name]; !dup {
			byName[name] = s
		}
	}

	selected := make([]*table.Series, 0, len(TripSchema))

	ids := table.NewSeries(ColTripID, table.KindString)
	stamp := extractedAt.UTC().Format(tripIDTimeLayout)
	for i := 0; i < raw.NumRows(); i++ {
		ids.AppendString(strconv.Itoa(i) + "_" + stamp)
	}
	selected = append(selected, ids)

	for _, f := range sourceFields {
		src := pick(byName, f.aliases)
		if src == nil {
			return nil, fmt.Errorf("%s trips: %w: %s (accepted: %s)",
				taxiType, ErrMissingColumn, f.target, strings.Join(f.aliases, ", "))
		}
		cast, err := src.Cast(f.kind)
		if err != nil {
			return nil, fmt.Errorf("%s trips: %w", taxiType, err)
		}
		selected = append(selected, cast.Renamed(f.target))
	}

	at := table.NewTimestampSeries(ColExtractedAt, "")
	naiveAt := extractedAt.UTC()
	for i := 0; i < raw.NumRows(); i++ {
		at.AppendTime(naiveAt)
	}
	selected = append(selected, at)

	t, err := table.New(selected...)
	if err != nil {
		return nil, err
	}
	if t, err = t.Rename(ColPaymentType, ColPaymentTypeID); err != nil {
		return nil, err
	}

	pickup, _ := t.Column(ColPickup)
	t = t.Filter(func(i int) bool {
		return !pickup.IsNull(i) && w.Contains(pickup.Time(i))
	})

	return t.Select(TripSchema.Names()...)
}

func pick(byName map[string]*table.Series, aliases []string) *table.Series {
	for _, a := range aliases {
		if s, ok := byName[a]; ok {
			return s
		}
	}
	return nil
}
