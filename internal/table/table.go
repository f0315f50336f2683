package table

import (
	"fmt"
	"time"
)

// Table is an ordered set of equally long series. Tables are treated as
// immutable: every operation returns a new Table, possibly sharing series.
type Table struct {
	series []*Series
	index  map[string]int
	rows   int
}

// New builds a table from series. Names must be unique and all series must
// have the same length.
func New(series ...*Series) (*Table, error) {
	t := &Table{
		series: make([]*Series, 0, len(series)),
		index:  make(map[string]int, len(series)),
	}
	for i, s := range series {
		if s == nil {
			return nil, fmt.Errorf("table: series %d is nil", i)
		}
		if _, dup := t.index[s.name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", s.name)
		}
		if i == 0 {
			t.rows = s.n
		} else if s.n != t.rows {
			return nil, fmt.Errorf("table: column %q has %d rows, want %d", s.name, s.n, t.rows)
		}
		t.index[s.name] = len(t.series)
		t.series = append(t.series, s)
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and static
// fixtures.
func MustNew(series ...*Series) *Table {
	t, err := New(series...)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a zero-row table with every schema column present and typed.
func Empty(schema Schema) *Table {
	series := make([]*Series, len(schema))
	for i, f := range schema {
		series[i] = NewSeries(f.Name, f.Kind)
	}
	return MustNew(series...)
}

func (t *Table) NumRows() int { return t.rows }
func (t *Table) NumCols() int { return len(t.series) }

// Schema returns the column names and kinds in order.
func (t *Table) Schema() Schema {
	out := make(Schema, len(t.series))
	for i, s := range t.series {
		out[i] = Field{Name: s.name, Kind: s.kind}
	}
	return out
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.series))
	for i, s := range t.series {
		out[i] = s.name
	}
	return out
}

// Column returns the series with the given name.
func (t *Table) Column(name string) (*Series, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.series[i], true
}

// ColumnAt returns the i-th series.
func (t *Table) ColumnAt(i int) *Series { return t.series[i] }

// Select projects the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := make([]*Series, 0, len(names))
	for _, n := range names {
		s, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("table: no column %q", n)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return &Table{index: map[string]int{}}, nil
	}
	return New(out...)
}

// Rename renames column from to to, keeping its position.
func (t *Table) Rename(from, to string) (*Table, error) {
	i, ok := t.index[from]
	if !ok {
		return nil, fmt.Errorf("table: no column %q", from)
	}
	series := append([]*Series(nil), t.series...)
	series[i] = series[i].Renamed(to)
	return New(series...)
}

// With returns a table where s replaces the column of the same name, or is
// appended when no such column exists.
func (t *Table) With(s *Series) (*Table, error) {
	series := append([]*Series(nil), t.series...)
	if i, ok := t.index[s.name]; ok {
		series[i] = s
	} else {
		series = append(series, s)
	}
	return New(series...)
}

// Filter keeps the rows for which keep returns true, preserving order.
func (t *Table) Filter(keep func(row int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	if len(idx) == t.rows {
		return t
	}
	series := make([]*Series, len(t.series))
	for c, s := range t.series {
		out := s.empty()
		for _, i := range idx {
			out.appendFrom(s, i)
		}
		series[c] = out
	}
	return MustNew(series...)
}

// Slice returns rows [lo, hi). Bounds are clamped to the table.
func (t *Table) Slice(lo, hi int) *Table {
	if lo < 0 {
		lo = 0
	}
	if hi > t.rows {
		hi = t.rows
	}
	if lo > hi {
		lo = hi
	}
	series := make([]*Series, len(t.series))
	for i, s := range t.series {
		series[i] = s.Slice(lo, hi)
	}
	out := MustNew(series...)
	out.rows = hi - lo
	return out
}

// Head returns the first n rows. Head(0) is the empty projection that keeps
// column names and kinds.
func (t *Table) Head(n int) *Table { return t.Slice(0, n) }

// Row materializes row i; null cells are nil.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.series))
	for c, s := range t.series {
		out[c] = s.Value(i)
	}
	return out
}

// Rows materializes every row. Callers bound memory by calling it on a Slice.
func (t *Table) Rows() [][]any {
	out := make([][]any, t.rows)
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Concat appends the rows of every table in order. All tables must share the
// same schema. Timestamp columns whose zones differ are converted to UTC.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("table: concat of zero tables")
	}
	first := tables[0]
	schema := first.Schema()
	total := 0
	for i, tb := range tables {
		if !tb.Schema().Equal(schema) {
			return nil, fmt.Errorf("table: concat: table %d schema %v does not match %v", i, tb.Schema(), schema)
		}
		total += tb.rows
	}
	if len(tables) == 1 {
		return first, nil
	}

	series := make([]*Series, len(schema))
	for c := range schema {
		zone, mixed := first.series[c].zone, false
		for _, tb := range tables[1:] {
			if tb.series[c].zone != zone {
				mixed = true
			}
		}
		out := first.series[c].empty()
		if mixed {
			out.zone = "UTC"
		}
		grow(out, total)
		for _, tb := range tables {
			s := tb.series[c]
			for i := 0; i < s.n; i++ {
				if mixed && !s.IsNull(i) {
					out.AppendTime(s.times[i].UTC())
					continue
				}
				out.appendFrom(s, i)
			}
		}
		series[c] = out
	}
	return New(series...)
}

func grow(s *Series, n int) {
	switch s.kind {
	case KindString:
		s.strs = make([]string, 0, n)
	case KindInt64:
		s.ints = make([]int64, 0, n)
	case KindFloat64:
		s.floats = make([]float64, 0, n)
	case KindBool:
		s.bools = make([]bool, 0, n)
	case KindTimestamp:
		s.times = make([]time.Time, 0, n)
	}
}

// StripTimezones converts the named zoned timestamp columns to UTC and marks
// them naive. Missing, naive, or non-timestamp columns are left unchanged.
func StripTimezones(t *Table, names ...string) (*Table, error) {
	out := t
	for _, name := range names {
		s, ok := out.Column(name)
		if !ok || s.kind != KindTimestamp || s.zone == "" {
			continue
		}
		naive := NewTimestampSeries(s.name, "")
		grow(naive, s.n)
		for i := 0; i < s.n; i++ {
			if s.IsNull(i) {
				naive.AppendNull()
				continue
			}
			naive.AppendTime(s.times[i].UTC())
		}
		var err error
		if out, err = out.With(naive); err != nil {
			return nil, err
		}
	}
	return out, nil
}
