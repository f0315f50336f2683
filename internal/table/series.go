package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the text form used when timestamps are rendered as strings.
const TimeLayout = "2006-01-02 15:04:05"

// parseLayouts are tried in order when a string is cast to a timestamp.
var parseLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Series is one named, typed column. Only the backing slice that matches the
// series kind is used.
type Series struct {
	name string
	kind Kind
	zone string

	strs   []string
	ints   []int64
	floats []float64
	bools  []bool
	times  []time.Time

	// nulls stays nil until the first null is appended.
	nulls []bool
	n     int
}

// NewSeries returns an empty series. Use NewTimestampSeries for zoned
// timestamps.
func NewSeries(name string, kind Kind) *Series {
	return &Series{name: name, kind: kind}
}

// NewTimestampSeries returns an empty timestamp series in the given zone.
// An empty zone marks the series as naive UTC.
func NewTimestampSeries(name, zone string) *Series {
	return &Series{name: name, kind: KindTimestamp, zone: zone}
}

func (s *Series) Name() string { return s.name }
func (s *Series) Kind() Kind   { return s.kind }
func (s *Series) Len() int     { return s.n }

// Zone returns the zone name of a timestamp series, "" when naive.
func (s *Series) Zone() string { return s.zone }

// IsNull reports whether row i is null.
func (s *Series) IsNull(i int) bool {
	return s.nulls != nil && s.nulls[i]
}

// NullCount returns the number of null rows.
func (s *Series) NullCount() int {
	c := 0
	for _, isNull := range s.nulls {
		if isNull {
			c++
		}
	}
	return c
}

func (s *Series) markValid() {
	if s.nulls != nil {
		s.nulls = append(s.nulls, false)
	}
	s.n++
}

// AppendNull appends a null cell.
func (s *Series) AppendNull() {
	if s.nulls == nil {
		s.nulls = make([]bool, s.n, s.n+1)
	}
	s.nulls = append(s.nulls, true)
	switch s.kind {
	case KindString:
		s.strs = append(s.strs, "")
	case KindInt64:
		s.ints = append(s.ints, 0)
	case KindFloat64:
		s.floats = append(s.floats, 0)
	case KindBool:
		s.bools = append(s.bools, false)
	case KindTimestamp:
		s.times = append(s.times, time.Time{})
	}
	s.n++
}

func (s *Series) AppendString(v string) {
	s.strs = append(s.strs, v)
	s.markValid()
}

func (s *Series) AppendInt64(v int64) {
	s.ints = append(s.ints, v)
	s.markValid()
}

func (s *Series) AppendFloat64(v float64) {
	s.floats = append(s.floats, v)
	s.markValid()
}

func (s *Series) AppendBool(v bool) {
	s.bools = append(s.bools, v)
	s.markValid()
}

func (s *Series) AppendTime(v time.Time) {
	s.times = append(s.times, v)
	s.markValid()
}

// Append appends v, which must be nil or match the series kind.
func (s *Series) Append(v any) error {
	if v == nil {
		s.AppendNull()
		return nil
	}
	switch s.kind {
	case KindString:
		if x, ok := v.(string); ok {
			s.AppendString(x)
			return nil
		}
	case KindInt64:
		switch x := v.(type) {
		case int64:
			s.AppendInt64(x)
			return nil
		case int:
			s.AppendInt64(int64(x))
			return nil
		case int32:
			s.AppendInt64(int64(x))
			return nil
		}
	case KindFloat64:
		switch x := v.(type) {
		case float64:
			s.AppendFloat64(x)
			return nil
		case float32:
			s.AppendFloat64(float64(x))
			return nil
		}
	case KindBool:
		if x, ok := v.(bool); ok {
			s.AppendBool(x)
			return nil
		}
	case KindTimestamp:
		if x, ok := v.(time.Time); ok {
			s.AppendTime(x)
			return nil
		}
	}
	return fmt.Errorf("series %s: cannot append %T to %s column", s.name, v, s.kind)
}

func (s *Series) Str(i int) string      { return s.strs[i] }
func (s *Series) Int64(i int) int64     { return s.ints[i] }
func (s *Series) Float64(i int) float64 { return s.floats[i] }
func (s *Series) Bool(i int) bool       { return s.bools[i] }
func (s *Series) Time(i int) time.Time  { return s.times[i] }

// Value returns row i as a plain Go value, or nil when the cell is null.
func (s *Series) Value(i int) any {
	if s.IsNull(i) {
		return nil
	}
	switch s.kind {
	case KindString:
		return s.strs[i]
	case KindInt64:
		return s.ints[i]
	case KindFloat64:
		return s.floats[i]
	case KindBool:
		return s.bools[i]
	case KindTimestamp:
		return s.times[i]
	}
	return nil
}

// Renamed returns a series sharing s's values under a new name.
func (s *Series) Renamed(name string) *Series {
	c := *s
	c.name = name
	return &c
}

// Slice returns rows [lo, hi) sharing the backing arrays of s.
func (s *Series) Slice(lo, hi int) *Series {
	c := &Series{name: s.name, kind: s.kind, zone: s.zone, n: hi - lo}
	if s.nulls != nil {
		c.nulls = s.nulls[lo:hi:hi]
	}
	switch s.kind {
	case KindString:
		c.strs = s.strs[lo:hi:hi]
	case KindInt64:
		c.ints = s.ints[lo:hi:hi]
	case KindFloat64:
		c.floats = s.floats[lo:hi:hi]
	case KindBool:
		c.bools = s.bools[lo:hi:hi]
	case KindTimestamp:
		c.times = s.times[lo:hi:hi]
	}
	return c
}

// appendFrom copies row i of o (same kind) onto s.
func (s *Series) appendFrom(o *Series, i int) {
	if o.IsNull(i) {
		s.AppendNull()
		return
	}
	switch s.kind {
	case KindString:
		s.AppendString(o.strs[i])
	case KindInt64:
		s.AppendInt64(o.ints[i])
	case KindFloat64:
		s.AppendFloat64(o.floats[i])
	case KindBool:
		s.AppendBool(o.bools[i])
	case KindTimestamp:
		s.AppendTime(o.times[i])
	}
}

func (s *Series) empty() *Series {
	return &Series{name: s.name, kind: s.kind, zone: s.zone}
}

// Cast converts s to kind. Float to int truncates toward zero and turns NaN
// and infinities into nulls; empty strings become nulls for non-string kinds.
func (s *Series) Cast(kind Kind) (*Series, error) {
	if s.kind == kind {
		return s, nil
	}
	out := NewSeries(s.name, kind)
	for i := 0; i < s.n; i++ {
		if s.IsNull(i) {
			out.AppendNull()
			continue
		}
		if err := castCell(s, i, out); err != nil {
			return nil, fmt.Errorf("cast %s from %s to %s: row %d: %w", s.name, s.kind, kind, i, err)
		}
	}
	return out, nil
}

// floatToInt64 truncates f toward zero. It reports false for NaN, the
// infinities and values outside [-2^63, 2^63).
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func castCell(s *Series, i int, out *Series) error {
	switch out.kind {
	case KindString:
		out.AppendString(formatCell(s, i))
		return nil

	case KindInt64:
		switch s.kind {
		case KindFloat64:
			n, ok := floatToInt64(s.floats[i])
			if !ok {
				out.AppendNull()
				return nil
			}
			out.AppendInt64(n)
		case KindBool:
			if s.bools[i] {
				out.AppendInt64(1)
			} else {
				out.AppendInt64(0)
			}
		case KindString:
			str := strings.TrimSpace(s.strs[i])
			if str == "" {
				out.AppendNull()
				return nil
			}
			n, err := strconv.ParseInt(str, 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(str, 64)
				if ferr != nil || f != math.Trunc(f) {
					return err
				}
				var ok bool
				if n, ok = floatToInt64(f); !ok {
					return fmt.Errorf("%q out of int64 range", str)
				}
			}
			out.AppendInt64(n)
		default:
			return fmt.Errorf("unsupported conversion")
		}
		return nil

	case KindFloat64:
		switch s.kind {
		case KindInt64:
			out.AppendFloat64(float64(s.ints[i]))
		case KindBool:
			if s.bools[i] {
				out.AppendFloat64(1)
			} else {
				out.AppendFloat64(0)
			}
		case KindString:
			str := strings.TrimSpace(s.strs[i])
			if str == "" {
				out.AppendNull()
				return nil
			}
			f, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return err
			}
			out.AppendFloat64(f)
		default:
			return fmt.Errorf("unsupported conversion")
		}
		return nil

	case KindBool:
		switch s.kind {
		case KindInt64:
			out.AppendBool(s.ints[i] != 0)
		case KindFloat64:
			out.AppendBool(s.floats[i] != 0)
		case KindString:
			str := strings.TrimSpace(s.strs[i])
			if str == "" {
				out.AppendNull()
				return nil
			}
			b, err := strconv.ParseBool(str)
			if err != nil {
				return err
			}
			out.AppendBool(b)
		default:
			return fmt.Errorf("unsupported conversion")
		}
		return nil

	case KindTimestamp:
		if s.kind != KindString {
			return fmt.Errorf("unsupported conversion")
		}
		str := strings.TrimSpace(s.strs[i])
		if str == "" {
			out.AppendNull()
			return nil
		}
		t, err := ParseTime(str)
		if err != nil {
			return err
		}
		out.AppendTime(t)
		return nil
	}
	return fmt.Errorf("unsupported target kind %s", out.kind)
}

func formatCell(s *Series, i int) string {
	switch s.kind {
	case KindString:
		return s.strs[i]
	case KindInt64:
		return strconv.FormatInt(s.ints[i], 10)
	case KindFloat64:
		return strconv.FormatFloat(s.floats[i], 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.bools[i])
	case KindTimestamp:
		return s.times[i].Format(TimeLayout)
	}
	return ""
}

// ParseTime parses s with the layouts the parsers accept. Values without an
// offset are read as UTC.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range parseLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
