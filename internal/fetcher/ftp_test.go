package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "standard ftp url",
			url:      "ftp://ftp.example.com/pub/data/file.csv",
			wantHost: "ftp.example.com:21",
			wantPath: "/pub/data/file.csv",
		},
		{
			name:     "ftp url with port",
			url:      "ftp://ftp.example.com:2121/data/file.txt",
			wantHost: "ftp.example.com:2121",
			wantPath: "/data/file.txt",
		},
		{
			name:     "tiger mirror path",
			url:      "ftp://ftp2.census.gov/geo/tiger/TIGER2024/TRACT/tl_2024_53_tract.zip",
			wantHost: "ftp2.census.gov:21",
			wantPath: "/geo/tiger/TIGER2024/TRACT/tl_2024_53_tract.zip",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/file.csv",
			wantErr: true,
		},
		{
			name:    "empty path",
			url:     "ftp://ftp.example.com",
			wantErr: true,
		},
		{
			name:    "invalid url",
			url:     "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestNewFTPFetcher_DefaultTimeout(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
}

// ftpStub speaks just enough FTP for the client to log in anonymously and
// RETR a file over a passive data connection.
type ftpStub struct {
	ln    net.Listener
	files map[string]string
	wg    sync.WaitGroup
}

func newFTPStub(t *testing.T, files map[string]string) *ftpStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &ftpStub{ln: ln, files: files}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.close)
	return s
}

func (s *ftpStub) addr() string { return s.ln.Addr().String() }

func (s *ftpStub) close() {
	s.ln.Close() //nolint:errcheck
	s.wg.Wait()
}

func (s *ftpStub) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.session(conn)
		}()
	}
}

func reply(w *bufio.Writer, lines ...string) {
	for _, line := range lines {
		fmt.Fprintf(w, "%s\r\n", line) //nolint:errcheck
	}
	w.Flush() //nolint:errcheck
}

func (s *ftpStub) session(conn net.Conn) {
	defer conn.Close()                                 //nolint:errcheck
	conn.SetDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)
	reply(w, "220 ftp stub ready")

	var data net.Listener
	defer func() {
		if data != nil {
			data.Close() //nolint:errcheck
		}
	}()

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch strings.ToUpper(cmd) {
		case "USER", "PASS":
			reply(w, "230 logged in")

		case "FEAT":
			reply(w, "211-features", " UTF8", "211 end")

		case "TYPE", "OPTS":
			reply(w, "200 ok")

		case "EPSV":
			var lerr error
			data, lerr = net.Listen("tcp", "127.0.0.1:0")
			if lerr != nil {
				reply(w, "425 cannot open data connection")
				continue
			}
			port := data.Addr().(*net.TCPAddr).Port
			reply(w, fmt.Sprintf("229 Entering Extended Passive Mode (|||%d|)", port))

		case "PASV":
			var lerr error
			data, lerr = net.Listen("tcp", "127.0.0.1:0")
			if lerr != nil {
				reply(w, "425 cannot open data connection")
				continue
			}
			a := data.Addr().(*net.TCPAddr)
			reply(w, fmt.Sprintf("227 Entering Passive Mode (127,0,0,1,%d,%d)", a.Port/256, a.Port%256))

		case "RETR":
			content, ok := s.files[arg]
			if !ok || data == nil {
				reply(w, "550 file not found")
				continue
			}
			reply(w, "150 opening data connection")
			dc, aerr := data.Accept()
			if aerr != nil {
				reply(w, "425 data connection failed")
				continue
			}
			io.WriteString(dc, content) //nolint:errcheck
			dc.Close()                  //nolint:errcheck
			data.Close()                //nolint:errcheck
			data = nil
			reply(w, "226 transfer complete")

		case "QUIT":
			reply(w, "221 goodbye")
			return

		default:
			reply(w, "502 not implemented")
		}
	}
}

func TestFTPFetcher_Download(t *testing.T) {
	srv := newFTPStub(t, map[string]string{
		"/geo/tiger/TIGER2024/TRACT/tl_2024_53_tract.zip": "shapefile archive bytes",
	})

	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	ftpURL := fmt.Sprintf("ftp://%s/geo/tiger/TIGER2024/TRACT/tl_2024_53_tract.zip", srv.addr())
	body, err := f.Download(context.Background(), ftpURL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "shapefile archive bytes", string(data))
}

func TestFTPFetcher_DownloadToFile(t *testing.T) {
	srv := newFTPStub(t, map[string]string{
		"/data/file.txt": "hello ftp world",
	})

	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	dir := t.TempDir()
	destPath := filepath.Join(dir, "output.txt")

	ftpURL := fmt.Sprintf("ftp://%s/data/file.txt", srv.addr())
	n, err := f.DownloadToFile(context.Background(), ftpURL, destPath)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "hello ftp world", string(data))

	// No temp file left next to the destination.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFTPFetcher_Download_InvalidURL(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	_, err := f.Download(context.Background(), "http://not-ftp/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected ftp scheme")
}

func TestFTPFetcher_Download_ConnectionRefused(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{Timeout: 2 * time.Second})

	_, err := f.Download(context.Background(), "ftp://127.0.0.1:19999/path/file.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp dial")
}

func TestFTPFetcher_Download_FileNotFound(t *testing.T) {
	srv := newFTPStub(t, map[string]string{
		"/existing.txt": "data",
	})

	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	ftpURL := fmt.Sprintf("ftp://%s/nonexistent.txt", srv.addr())
	_, err := f.Download(context.Background(), ftpURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp retrieve")
}

func TestFTPFetcher_DownloadToFile_BadDestination(t *testing.T) {
	srv := newFTPStub(t, map[string]string{
		"/data.txt": "content",
	})

	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	// A regular file where a parent directory is needed.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	ftpURL := fmt.Sprintf("ftp://%s/data.txt", srv.addr())
	_, err := f.DownloadToFile(context.Background(), ftpURL, filepath.Join(blocker, "file.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create directory")
}

func TestFTPFetcher_DownloadToFile_DownloadError(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{Timeout: 2 * time.Second})

	dest := filepath.Join(t.TempDir(), "out.txt")
	_, err := f.DownloadToFile(context.Background(), "ftp://127.0.0.1:19999/file.txt", dest)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFTPConnReader_ReadAndClose(t *testing.T) {
	srv := newFTPStub(t, map[string]string{
		"/test.txt": "read close test",
	})

	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	ftpURL := fmt.Sprintf("ftp://%s/test.txt", srv.addr())
	rc, err := f.Download(context.Background(), ftpURL)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := rc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "read", string(buf))

	require.NoError(t, rc.Close())
}
