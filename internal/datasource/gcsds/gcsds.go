// Package gcsds reads objects from Google Cloud Storage given gs:// URLs.
package gcsds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// Source opens Cloud Storage objects. The client is created on first use so
// runs that never touch gs:// do not need credentials.
type Source struct {
	mu     sync.Mutex
	client *storage.Client
}

// New returns a Source with a lazily created client.
func New() *Source { return &Source{} }

// NewWithClient returns a Source bound to an existing client.
func NewWithClient(c *storage.Client) *Source { return &Source{client: c} }

// ParseURL splits gs://bucket/object into its parts.
func ParseURL(raw string) (bucket, object string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("gcsds: parse %s: %w", raw, err)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("gcsds: %s is not a gs:// url", raw)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("gcsds: %s must name a bucket and an object", raw)
	}
	return u.Host, object, nil
}

// Open returns a reader over the object at location.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, object, err := ParseURL(location)
	if err != nil {
		return nil, err
	}
	client, err := s.storageClient(ctx)
	if err != nil {
		return nil, err
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsds: reader for %s: %w", location, err)
	}
	zerolog.Ctx(ctx).Debug().Str("bucket", bucket).Str("object", object).Int64("size", r.Attrs.Size).Msg("opened object")
	return r, nil
}

func (s *Source) storageClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		c, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcsds: build storage client: %w", err)
		}
		s.client = c
	}
	return s.client, nil
}

// Close releases the client, if one was created.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
