// Package bigquery implements storage.Repository on Google BigQuery. Tables
// are replaced by delete + create with an explicit schema; rows are appended
// by CSV load jobs with WRITE_APPEND.
//
// DSN form: bigquery://<project>/<dataset>. A table name of the form
// "dataset.table" overrides the DSN dataset.
package bigquery

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"taxietl/internal/storage"
	"taxietl/internal/table"
)

// nullMarker is written for nil cells and declared on every load job.
const nullMarker = `\N`

// datetimeLayout is BigQuery's canonical DATETIME text form.
const datetimeLayout = "2006-01-02 15:04:05.999999"

// Config identifies the destination dataset.
type Config struct {
	Project string
	Dataset string
}

// ParseDSN reads bigquery://project/dataset.
func ParseDSN(dsn string) (Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Config{}, fmt.Errorf("bigquery dsn: %w", err)
	}
	if u.Scheme != "bigquery" {
		return Config{}, fmt.Errorf("bigquery dsn: want bigquery:// scheme, got %q", u.Scheme)
	}
	ds := strings.Trim(u.Path, "/")
	if u.Host == "" || ds == "" || strings.Contains(ds, "/") {
		return Config{}, fmt.Errorf("bigquery dsn: want bigquery://<project>/<dataset>, got %q", dsn)
	}
	return Config{Project: u.Host, Dataset: ds}, nil
}

// backend is the slice of the BigQuery API the repository needs.
type backend interface {
	replace(ctx context.Context, dataset, table string, schema bigquery.Schema) error
	load(ctx context.Context, dataset, table string, schema bigquery.Schema, r io.Reader) error
	close() error
}

// Repository is a BigQuery-backed storage.Repository.
type Repository struct {
	cfg     Config
	be      backend
	schemas map[string]bigquery.Schema
}

// NewRepository creates a BigQuery client for cfg.Project.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	c, err := bigquery.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, nil, fmt.Errorf("bigquery client: %w", err)
	}
	r := newWithBackend(cfg, &clientBackend{client: c})
	return r, func() { _ = r.be.close() }, nil
}

func newWithBackend(cfg Config, be backend) *Repository {
	return &Repository{cfg: cfg, be: be, schemas: map[string]bigquery.Schema{}}
}

func (r *Repository) split(name string) (dataset, tbl string) {
	if ds, t, ok := strings.Cut(name, "."); ok {
		return ds, t
	}
	return r.cfg.Dataset, name
}

// Schema maps a table schema to BigQuery fields. Timestamps are naive, so
// they become DATETIME.
func Schema(s table.Schema) (bigquery.Schema, error) {
	out := make(bigquery.Schema, 0, len(s))
	for _, f := range s {
		var typ bigquery.FieldType
		switch f.Kind {
		case table.KindString:
			typ = bigquery.StringFieldType
		case table.KindInt64:
			typ = bigquery.IntegerFieldType
		case table.KindFloat64:
			typ = bigquery.FloatFieldType
		case table.KindBool:
			typ = bigquery.BooleanFieldType
		case table.KindTimestamp:
			typ = bigquery.DateTimeFieldType
		default:
			return nil, fmt.Errorf("bigquery: column %s has unsupported kind %s", f.Name, f.Kind)
		}
		out = append(out, &bigquery.FieldSchema{Name: f.Name, Type: typ})
	}
	return out, nil
}

// ReplaceTable deletes name (a missing table is fine) and creates it with the
// schema of empty.
func (r *Repository) ReplaceTable(ctx context.Context, name string, empty *table.Table) error {
	schema, err := Schema(empty.Schema())
	if err != nil {
		return err
	}
	ds, tbl := r.split(name)
	if err := r.be.replace(ctx, ds, tbl, schema); err != nil {
		return fmt.Errorf("bigquery: replace %s.%s: %w", ds, tbl, err)
	}
	r.schemas[name] = schema
	zerolog.Ctx(ctx).Debug().Str("dataset", ds).Str("table", tbl).Msg("bigquery: table recreated")
	return nil
}

// CopyFrom appends rows with one CSV load job.
func (r *Repository) CopyFrom(ctx context.Context, name string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	payload, err := encodeCSV(rows)
	if err != nil {
		return 0, err
	}
	ds, tbl := r.split(name)
	if err := r.be.load(ctx, ds, tbl, r.schemas[name], bytes.NewReader(payload)); err != nil {
		return 0, fmt.Errorf("bigquery: load %s.%s: %w", ds, tbl, err)
	}
	return int64(len(rows)), nil
}

// encodeCSV renders rows as headerless CSV with nullMarker for nil cells.
func encodeCSV(rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rec := make([]string, 0)
	for _, row := range rows {
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, formatCell(v))
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("bigquery: encode csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("bigquery: encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return nullMarker
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(datetimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

type clientBackend struct {
	client *bigquery.Client
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func (b *clientBackend) replace(ctx context.Context, dataset, tbl string, schema bigquery.Schema) error {
	t := b.client.Dataset(dataset).Table(tbl)
	if err := t.Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete: %w", err)
	}
	if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return nil
}

func (b *clientBackend) load(ctx context.Context, dataset, tbl string, schema bigquery.Schema, r io.Reader) error {
	rs := bigquery.NewReaderSource(r)
	rs.SourceFormat = bigquery.CSV
	rs.NullMarker = nullMarker
	rs.Schema = schema

	loader := b.client.Dataset(dataset).Table(tbl).LoaderFrom(rs)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("run load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait load job: %w", err)
	}
	if err := status.Err(); err != nil {
		zerolog.Ctx(ctx).Error().Interface("errors", status.Errors).Msg("bigquery: load job failed")
		return err
	}
	return nil
}

func (b *clientBackend) close() error { return b.client.Close() }

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

var _ storage.Repository = (*wrappedRepo)(nil)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

func init() {
	storage.Register("bigquery", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		bc, err := ParseDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		r, closeFn, err := newRepository(ctx, bc)
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("bigquery", Dialect{})
}

// Dialect renders BigQuery standard SQL DDL for -print-schema.
type Dialect struct{}

func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func (Dialect) ColumnType(k table.Kind) string {
	switch k {
	case table.KindString:
		return "STRING"
	case table.KindInt64:
		return "INT64"
	case table.KindFloat64:
		return "FLOAT64"
	case table.KindBool:
		return "BOOL"
	case table.KindTimestamp:
		return "DATETIME"
	}
	return ""
}
