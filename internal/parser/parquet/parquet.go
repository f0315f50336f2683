// Package parquet converts between Parquet files and table.Table using the
// Arrow pqarrow bridge.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"taxietl/internal/parser"
	"taxietl/internal/table"
)

// ReadTable decodes a whole Parquet file. Column names are normalized with
// parser.NormalizeName. Timestamp columns keep the zone recorded in the file.
func ReadTable(ctx context.Context, data []byte) (*table.Table, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parquet: open: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("parquet: arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquet: read: %w", err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	series := make([]*table.Series, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		field := schema.Field(i)
		s, err := seriesFor(parser.NormalizeName(field.Name), field.Type)
		if err != nil {
			return nil, err
		}
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			if err := appendArray(s, chunk); err != nil {
				return nil, fmt.Errorf("parquet: column %s: %w", field.Name, err)
			}
		}
		series = append(series, s)
	}
	return table.New(series...)
}

func seriesFor(name string, dt arrow.DataType) (*table.Series, error) {
	switch t := dt.(type) {
	case *arrow.Int8Type, *arrow.Int16Type, *arrow.Int32Type, *arrow.Int64Type,
		*arrow.Uint8Type, *arrow.Uint16Type, *arrow.Uint32Type:
		return table.NewSeries(name, table.KindInt64), nil
	case *arrow.Float32Type, *arrow.Float64Type:
		return table.NewSeries(name, table.KindFloat64), nil
	case *arrow.StringType, *arrow.LargeStringType, *arrow.NullType:
		return table.NewSeries(name, table.KindString), nil
	case *arrow.BooleanType:
		return table.NewSeries(name, table.KindBool), nil
	case *arrow.TimestampType:
		return table.NewTimestampSeries(name, t.TimeZone), nil
	case *arrow.Date32Type:
		return table.NewTimestampSeries(name, ""), nil
	default:
		return nil, fmt.Errorf("parquet: column %s: unsupported type %s", name, dt)
	}
}

func appendArray(s *table.Series, arr arrow.Array) error {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.Int8:
		appendEach(s, a, n, func(i int) { s.AppendInt64(int64(a.Value(i))) })
	case *array.Int16:
		appendEach(s, a, n, func(i int) { s.AppendInt64(int64(a.Value(i))) })
	case *array.Int32:
		appendEach(s, a, n, func(i int) { s.AppendInt64(int64(a.Value(i))) })
	case *array.Int64:
		appendEach(s, a, n, func(i int) { s.AppendInt64(a.Value(i)) })
	case *array.Uint8:
		appendEach(s, a, n, func(i int) { s.AppendInt64(int64(a.Value(i))) })
	case *array.Uint16:
		appendEach(s, a, n, func(i int) { s.AppendInt64(int64(a.Value(i))) })
	case *array.Uint32:
		appendEach(s, a, n, func(i int) { s.AppendInt64(int64(a.Value(i))) })
	case *array.Float32:
		appendEach(s, a, n, func(i int) { s.AppendFloat64(float64(a.Value(i))) })
	case *array.Float64:
		appendEach(s, a, n, func(i int) { s.AppendFloat64(a.Value(i)) })
	case *array.String:
		appendEach(s, a, n, func(i int) { s.AppendString(a.Value(i)) })
	case *array.LargeString:
		appendEach(s, a, n, func(i int) { s.AppendString(a.Value(i)) })
	case *array.Boolean:
		appendEach(s, a, n, func(i int) { s.AppendBool(a.Value(i)) })
	case *array.Null:
		for i := 0; i < n; i++ {
			s.AppendNull()
		}
	case *array.Timestamp:
		ts := a.DataType().(*arrow.TimestampType)
		loc := time.UTC
		if ts.TimeZone != "" {
			l, err := time.LoadLocation(ts.TimeZone)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", ts.TimeZone, err)
			}
			loc = l
		}
		appendEach(s, a, n, func(i int) { s.AppendTime(a.Value(i).ToTime(ts.Unit).In(loc)) })
	case *array.Date32:
		appendEach(s, a, n, func(i int) { s.AppendTime(a.Value(i).ToTime()) })
	default:
		return fmt.Errorf("unsupported array %T", arr)
	}
	return nil
}

func appendEach(s *table.Series, a arrow.Array, n int, valid func(i int)) {
	for i := 0; i < n; i++ {
		if a.IsNull(i) {
			s.AppendNull()
			continue
		}
		valid(i)
	}
}

// WriteTable writes t as a single-row-group, snappy-compressed Parquet file.
// Timestamps are stored with microsecond precision. The Arrow schema is
// embedded so a column's zone name survives ReadTable.
func WriteTable(w io.Writer, t *table.Table) error {
	schema := arrowSchema(t)
	mem := memory.DefaultAllocator

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for c := 0; c < t.NumCols(); c++ {
		if err := fill(b.Field(c), t.ColumnAt(c)); err != nil {
			return err
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	props := pq.NewWriterProperties(pq.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("parquet: writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet: write: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet: close: %w", err)
	}
	return nil
}

func arrowSchema(t *table.Table) *arrow.Schema {
	fields := make([]arrow.Field, t.NumCols())
	for i, f := range t.Schema() {
		var dt arrow.DataType
		switch f.Kind {
		case table.KindInt64:
			dt = arrow.PrimitiveTypes.Int64
		case table.KindFloat64:
			dt = arrow.PrimitiveTypes.Float64
		case table.KindBool:
			dt = arrow.FixedWidthTypes.Boolean
		case table.KindTimestamp:
			dt = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: t.ColumnAt(i).Zone()}
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func fill(b array.Builder, s *table.Series) error {
	for i := 0; i < s.Len(); i++ {
		if s.IsNull(i) {
			b.AppendNull()
			continue
		}
		switch bb := b.(type) {
		case *array.Int64Builder:
			bb.Append(s.Int64(i))
		case *array.Float64Builder:
			bb.Append(s.Float64(i))
		case *array.BooleanBuilder:
			bb.Append(s.Bool(i))
		case *array.TimestampBuilder:
			bb.Append(arrow.Timestamp(s.Time(i).UnixMicro()))
		case *array.StringBuilder:
			bb.Append(s.Str(i))
		default:
			return fmt.Errorf("parquet: column %s: unsupported builder %T", s.Name(), b)
		}
	}
	return nil
}
