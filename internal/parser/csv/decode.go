package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"taxietl/internal/table"
	"taxietl/internal/taxi"
)

// DecodeAll decodes every record of a headed CSV into values of T using
// csvutil struct tags. A leading UTF-8 BOM is dropped. Empty input yields no
// records.
func DecodeAll[T any](r io.Reader) ([]T, error) {
	in, err := openText(r)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(csv.NewReader(in))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(out)+1, err)
		}
		out = append(out, v)
	}
}

// ReadZones decodes the taxi zone lookup CSV into a table in
// taxi.ZoneSchema order.
func ReadZones(r io.Reader) (*table.Table, error) {
	zones, err := DecodeAll[taxi.Zone](r)
	if err != nil {
		return nil, fmt.Errorf("zones: %w", err)
	}
	return taxi.ZoneTable(zones), nil
}
