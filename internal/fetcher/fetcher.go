// Package fetcher downloads source datasets over HTTP and FTP and opens the
// archive and spreadsheet formats they arrive in.
package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Fetcher downloads remote files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// writeFileAtomic copies r to path through a temp file in the same directory,
// so a failed download never leaves a partial file at path.
func writeFileAtomic(r io.Reader, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrap(err, "create directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, eris.Wrap(err, "create temp file")
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return n, eris.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return n, eris.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return n, eris.Wrap(err, "rename temp file")
	}
	return n, nil
}
