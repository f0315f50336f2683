// Package file implements the local filesystem datasource, used for shards
// mirrored to disk and for tests.
package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// Local opens files from the local disk.
type Local struct{}

// NewLocal returns a Local datasource.
func NewLocal() *Local { return &Local{} }

// Path maps a file:// URL or a bare path to a filesystem path.
func Path(raw string) (string, error) {
	if !strings.HasPrefix(raw, "file:") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", raw, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("file url %s: remote host %q not supported", raw, u.Host)
	}
	if u.Path == "" {
		return u.Opaque, nil
	}
	return u.Path, nil
}

// Open opens the file behind location. A context that is already done
// short-circuits without touching the filesystem. Filesystem errors are
// wrapped so errors.Is(err, os.ErrNotExist) keeps working.
func (l *Local) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := Path(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
