package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestHTTPFetcher shrinks the backoff so retry tests finish quickly.
func newTestHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 5 * time.Millisecond
	}
	return NewHTTPFetcher(opts)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 5*time.Minute, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, time.Second, f.opts.BackoffBase)
	assert.Equal(t, "foodatlas-cli/1.0", f.opts.UserAgent)
}

func TestHTTPFetcher_Download(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("tract payload")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(HTTPOptions{})
	body, err := f.Download(context.Background(), srv.URL+"/tl_2024_53_tract.zip")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "tract payload", string(data))
	assert.Equal(t, "foodatlas-cli/1.0", gotUA.Load())
}

func TestHTTPFetcher_Download_NotFound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(HTTPOptions{})
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	// 404 is terminal, not retryable.
	assert.EqualValues(t, 1, attempts.Load())
}

func TestHTTPFetcher_Download_RetriesServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(HTTPOptions{MaxRetries: 3})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(data))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestHTTPFetcher_Download_RetriesTooManyRequests(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(HTTPOptions{})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	assert.EqualValues(t, 2, attempts.Load())
}

func TestHTTPFetcher_Download_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(HTTPOptions{MaxRetries: 2})
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Contains(t, err.Error(), "http 503")
	assert.EqualValues(t, 2, attempts.Load())
}

func TestHTTPFetcher_DownloadToFile(t *testing.T) {
	payload := strings.Repeat("shapefile bytes\n", 128)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload)) //nolint:errcheck
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "tracts.zip")

	f := newTestHTTPFetcher(HTTPOptions{})
	n, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	// The temp file is renamed away, not left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHTTPFetcher_DownloadToFile_CreatesDirectories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data")) //nolint:errcheck
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache", "tiger", "2024", "tracts.zip")

	f := newTestHTTPFetcher(HTTPOptions{})
	n, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestHTTPFetcher_DownloadToFile_ReplacesExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh")) //nolint:errcheck
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale and much longer"), 0o644))

	f := newTestHTTPFetcher(HTTPOptions{})
	_, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestHTTPFetcher_DownloadToFile_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "never.zip")

	f := newTestHTTPFetcher(HTTPOptions{})
	_, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHTTPFetcher_PerHostRateLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	f := newTestHTTPFetcher(HTTPOptions{
		RateLimiters: map[string]*rate.Limiter{
			u.Host: rate.NewLimiter(50, 1),
		},
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		body, err := f.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		require.NoError(t, body.Close())
	}
	// Burst of 1 at 50 req/s forces the second and third requests to wait.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestHTTPFetcher_LimiterFor_UnknownHost(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{RateLimiters: DefaultRateLimiters()})

	lim := f.limiterFor("https://www2.census.gov/geo/tiger/TIGER2024/TRACT/tl_2024_53_tract.zip")
	assert.Equal(t, rate.Limit(4), lim.Limit())

	lim = f.limiterFor("https://example.org/unrelated.csv")
	assert.Equal(t, rate.Limit(10), lim.Limit())
}

func TestHTTPFetcher_Download_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestHTTPFetcher(HTTPOptions{})
	_, err := f.Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestProgressReader_StepSizing(t *testing.T) {
	p := newProgressReader(strings.NewReader(""), "u", 320<<20)
	assert.EqualValues(t, 32<<20, p.step)

	// Unknown Content-Length falls back to a fixed stride.
	p = newProgressReader(strings.NewReader(""), "u", -1)
	assert.EqualValues(t, 16<<20, p.step)
}

func TestProgressReader_CountsBytes(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	p := newProgressReader(strings.NewReader(payload), "u", int64(len(payload)))

	data, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Len(t, data, 4096)
	assert.EqualValues(t, 4096, p.read)
}
