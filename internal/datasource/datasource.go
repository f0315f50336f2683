// Package datasource resolves a location URL to the datasource that serves
// it and reads payloads.
package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"taxietl/internal/datasource/file"
	"taxietl/internal/datasource/gcsds"
	"taxietl/internal/datasource/httpds"
)

// Source opens the payload behind a location.
type Source interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Router dispatches locations by scheme: http(s) to HTTP, gs to Cloud
// Storage, file or no scheme to the local disk.
type Router struct {
	HTTP  Source
	GCS   Source
	Local Source

	gcsOnce sync.Once
}

// NewRouter builds a Router with the default datasources.
func NewRouter(httpCfg httpds.Config) *Router {
	return &Router{
		HTTP:  httpds.NewClient(httpCfg),
		Local: file.NewLocal(),
	}
}

func (r *Router) sourceFor(location string) (Source, error) {
	scheme, _, ok := strings.Cut(location, "://")
	if !ok {
		scheme = ""
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return r.HTTP, nil
	case "gs":
		r.gcsOnce.Do(func() {
			if r.GCS == nil {
				r.GCS = gcsds.New()
			}
		})
		return r.GCS, nil
	case "", "file":
		return r.Local, nil
	default:
		return nil, fmt.Errorf("datasource: unsupported scheme %q in %s", scheme, location)
	}
}

// Open opens location with the datasource for its scheme.
func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	src, err := r.sourceFor(location)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, location)
}

// Fetch reads the whole payload behind location and logs its size and xxh3
// fingerprint.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	rc, err := r.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("datasource: read %s: %w", location, err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("location", location).
		Int("bytes", len(data)).
		Str("xxh3", Fingerprint(data)).
		Msg("fetched payload")
	return data, nil
}

// Close releases datasources that hold clients.
func (r *Router) Close() error {
	if c, ok := r.GCS.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Fingerprint returns the hex xxh3-64 digest of data.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
