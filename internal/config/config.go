// Package config loads the taxietl run configuration from the environment and
// an optional YAML, JSON, TOML or .env file. Environment variables override
// file values; unset fields take their env-default.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"taxietl/internal/taxi"
)

// Config is the full set of run settings.
type Config struct {
	StartDate string   `yaml:"start_date" json:"start_date" toml:"start_date" env:"START_DATE" env-default:"2024-01-01" env-description:"first pickup date (inclusive)"`
	EndDate   string   `yaml:"end_date" json:"end_date" toml:"end_date" env:"END_DATE" env-description:"last pickup date (inclusive); defaults to the last day of START_DATE's month"`
	TaxiTypes []string `yaml:"taxi_types" json:"taxi_types" toml:"taxi_types" env:"TAXI_TYPES" env-default:"yellow,green" env-separator:","`

	TripsBaseURL string `yaml:"trips_base_url" json:"trips_base_url" toml:"trips_base_url" env:"TRIPS_BASE_URL" env-default:"https://d37ci6vzurychx.cloudfront.net/trip-data/"`
	TripsFormat  string `yaml:"trips_format" json:"trips_format" toml:"trips_format" env:"TRIPS_FORMAT" env-default:"parquet" env-description:"parquet or csv.gz"`
	ZonesURL     string `yaml:"zones_url" json:"zones_url" toml:"zones_url" env:"ZONES_URL" env-default:"https://github.com/DataTalksClub/nyc-tlc-data/releases/download/misc/taxi_zone_lookup.csv"`

	TripsTable string `yaml:"trips_table" json:"trips_table" toml:"trips_table" env:"TRIPS_TABLE" env-default:"taxi_trips"`
	ZonesTable string `yaml:"zones_table" json:"zones_table" toml:"zones_table" env:"ZONES_TABLE" env-default:"taxi_zone_data"`

	Storage Storage `yaml:"storage" json:"storage" toml:"storage"`

	BatchSize    int           `yaml:"batch_size" json:"batch_size" toml:"batch_size" env:"BATCH_SIZE" env-default:"100000"`
	FetchWorkers int           `yaml:"fetch_workers" json:"fetch_workers" toml:"fetch_workers" env:"FETCH_WORKERS" env-default:"1"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" json:"http_timeout" toml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"5m"`

	Log     Log     `yaml:"log" json:"log" toml:"log"`
	Metrics Metrics `yaml:"metrics" json:"metrics" toml:"metrics"`
	JobName string  `yaml:"job_name" json:"job_name" toml:"job_name" env:"JOB_NAME" env-default:"taxietl"`
}

// Storage selects the sink.
type Storage struct {
	Kind string `yaml:"kind" json:"kind" toml:"kind" env:"STORAGE_KIND" env-default:"postgres"`
	DSN  string `yaml:"dsn" json:"dsn" toml:"dsn" env:"DB_DSN"`
	PG   PG     `yaml:"postgres" json:"postgres" toml:"postgres"`
}

// PG holds the libpq-style settings used to build a Postgres DSN when DB_DSN
// is unset.
type PG struct {
	User     string `yaml:"user" json:"user" toml:"user" env:"PGUSER" env-default:"root"`
	Password string `yaml:"password" json:"password" toml:"password" env:"PGPASSWORD" env-default:"root"`
	Host     string `yaml:"host" json:"host" toml:"host" env:"PGHOST" env-default:"localhost"`
	Port     string `yaml:"port" json:"port" toml:"port" env:"PGPORT" env-default:"5432"`
	Database string `yaml:"database" json:"database" toml:"database" env:"PGDATABASE" env-default:"ny_taxi"`
}

type Log struct {
	Level  string `yaml:"level" json:"level" toml:"level" env:"LOG_LEVEL" env-default:"info"`
	Pretty bool   `yaml:"pretty" json:"pretty" toml:"pretty" env:"LOG_PRETTY" env-default:"false"`
}

type Metrics struct {
	Backend        string `yaml:"backend" json:"backend" toml:"backend" env:"METRICS_BACKEND" env-default:"none" env-description:"none, pushgateway or datadog"`
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url" toml:"pushgateway_url" env:"PUSHGATEWAY_URL" env-default:"http://localhost:9091"`
	DogStatsDAddr  string `yaml:"dogstatsd_addr" json:"dogstatsd_addr" toml:"dogstatsd_addr" env:"DOGSTATSD_ADDR" env-default:"127.0.0.1:8125"`
}

// Load reads path (when non-empty) and then the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return cfg, nil
}

// Usage returns a description of every environment variable.
func Usage() string {
	var cfg Config
	d, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return d
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD)", s)
}

// Window resolves START_DATE and END_DATE. A bare date means midnight UTC.
func (c *Config) Window() (taxi.Window, error) {
	start, err := parseDate(c.StartDate)
	if err != nil {
		return taxi.Window{}, fmt.Errorf("start_date: %w", err)
	}
	var end time.Time
	if strings.TrimSpace(c.EndDate) == "" {
		end = time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	} else if end, err = parseDate(c.EndDate); err != nil {
		return taxi.Window{}, fmt.Errorf("end_date: %w", err)
	}
	return taxi.Window{Start: start, End: end}, nil
}

// Types parses TAXI_TYPES.
func (c *Config) Types() ([]taxi.Type, error) { return taxi.ParseTypes(c.TaxiTypes) }

// Format parses TRIPS_FORMAT.
func (c *Config) Format() (taxi.Format, error) { return taxi.ParseFormat(c.TripsFormat) }

// DSN returns DB_DSN, or for Postgres a DSN built from the PG* settings.
func (c *Config) DSN() string {
	if c.Storage.DSN != "" || c.Storage.Kind != "postgres" {
		return c.Storage.DSN
	}
	pg := c.Storage.PG
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pg.User, pg.Password),
		Host:     net.JoinHostPort(pg.Host, pg.Port),
		Path:     "/" + pg.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
