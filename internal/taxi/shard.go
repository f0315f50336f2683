package taxi

import (
	"fmt"
	"strings"
	"time"

	"taxietl/internal/table"
)

// Format is the file format of a trip shard, used as its file extension.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSVGzip Format = "csv.gz"
)

// ParseFormat validates a shard format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatParquet, FormatCSVGzip:
		return f, nil
	default:
		return "", fmt.Errorf("unknown trips format %q", s)
	}
}

// Shard is one monthly trip file of one taxi type.
type Shard struct {
	Type  Type
	Year  int
	Month time.Month
}

func (s Shard) String() string {
	return fmt.Sprintf("%s %04d-%02d", s.Type, s.Year, int(s.Month))
}

// FileName returns the TLC file name, e.g. yellow_tripdata_2024-01.parquet.
func (s Shard) FileName(f Format) string {
	return fmt.Sprintf("%s_tripdata_%04d-%02d.%s", s.Type, s.Year, int(s.Month), f)
}

// URL joins base and the shard file name.
func (s Shard) URL(base string, f Format) string {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + s.FileName(f)
}

// Shards lists the shards for every type and every month the window touches,
// grouped by type.
func Shards(types []Type, w Window) []Shard {
	months := w.Months()
	out := make([]Shard, 0, len(types)*len(months))
	for _, t := range types {
		for _, m := range months {
			out = append(out, Shard{Type: t, Year: m.Year, Month: m.Month})
		}
	}
	return out
}

// ShardResult is the outcome of fetching and normalizing one shard: either a
// normalized Table or a non-nil Err.
type ShardResult struct {
	Shard Shard
	URL   string
	Table *table.Table
	Err   error
}

func (r ShardResult) OK() bool { return r.Err == nil && r.Table != nil }
