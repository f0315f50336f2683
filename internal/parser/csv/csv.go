// Package csv reads delimited text into typed tables. Input may be plain or
// gzip-compressed; compression is detected from the leading magic bytes.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"taxietl/internal/parser"
	"taxietl/internal/table"
)

// TripTypes are the column kinds used for historical trip CSV dumps. Keys are
// normalized header names; columns not listed stay strings.
var TripTypes = map[string]table.Kind{
	"vendorid":              table.KindInt64,
	"passenger_count":       table.KindInt64,
	"trip_distance":         table.KindFloat64,
	"ratecodeid":            table.KindInt64,
	"store_and_fwd_flag":    table.KindString,
	"pulocationid":          table.KindInt64,
	"dolocationid":          table.KindInt64,
	"payment_type":          table.KindInt64,
	"fare_amount":           table.KindFloat64,
	"extra":                 table.KindFloat64,
	"mta_tax":               table.KindFloat64,
	"tip_amount":            table.KindFloat64,
	"tolls_amount":          table.KindFloat64,
	"improvement_surcharge": table.KindFloat64,
	"total_amount":          table.KindFloat64,
	"congestion_surcharge":  table.KindFloat64,
	"ehail_fee":             table.KindFloat64,
	"trip_type":             table.KindInt64,
	"tpep_pickup_datetime":  table.KindTimestamp,
	"tpep_dropoff_datetime": table.KindTimestamp,
	"lpep_pickup_datetime":  table.KindTimestamp,
	"lpep_dropoff_datetime": table.KindTimestamp,
}

// Options configures the CSV parser. All fields are optional.
type Options struct {
	// Types maps normalized header names to column kinds.
	Types map[string]table.Kind

	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TimeLayout, when set, is the only layout accepted for timestamp
	// columns. Otherwise table.ParseTime is used.
	TimeLayout string
}

// Parser reads CSV input into tables according to Options. It is safe to
// reuse across inputs.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress returns a reader over r's content, transparently un-gzipping it
// when r starts with the gzip magic bytes.
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	}
	return br, nil
}

// openText decompresses r and drops a leading UTF-8 BOM.
func openText(r io.Reader) (io.Reader, error) {
	in, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(in, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
}

// ReadTable reads a header row followed by records. Empty fields are null.
// A record with a different field count than the header is an error.
func (p *Parser) ReadTable(r io.Reader) (*table.Table, error) {
	in, err := openText(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(in)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.MustNew(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	names := parser.NormalizeNames(append([]string(nil), header...))

	raw := make([]*table.Series, len(names))
	for i, n := range names {
		raw[i] = table.NewSeries(n, table.KindString)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		for i, v := range rec {
			if v == "" {
				raw[i].AppendNull()
				continue
			}
			raw[i].AppendString(v)
		}
	}

	typed := make([]*table.Series, len(raw))
	for i, s := range raw {
		kind, ok := p.opt.Types[s.Name()]
		if !ok {
			typed[i] = s
			continue
		}
		if typed[i], err = p.convert(s, kind); err != nil {
			return nil, err
		}
	}
	return table.New(typed...)
}

func (p *Parser) convert(s *table.Series, kind table.Kind) (*table.Series, error) {
	if kind != table.KindTimestamp || p.opt.TimeLayout == "" {
		return s.Cast(kind)
	}
	out := table.NewTimestampSeries(s.Name(), "")
	for i := 0; i < s.Len(); i++ {
		if s.IsNull(i) {
			out.AppendNull()
			continue
		}
		t, err := time.ParseInLocation(p.opt.TimeLayout, strings.TrimSpace(s.Str(i)), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", s.Name(), i, err)
		}
		out.AppendTime(t)
	}
	return out, nil
}

// ReadTable parses r with default options plus the given column kinds.
func ReadTable(r io.Reader, types map[string]table.Kind) (*table.Table, error) {
	return NewParser(Options{Types: types}).ReadTable(r)
}
