package reference

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const zipsCSV = "Zip,Name\n15213,Oakland\n15217,Squirrel Hill\n15222,Downtown\n"

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		ok   bool
	}{
		{"sftp", Descriptor{Publisher: "pgh", Type: "sftp", File: "zips.csv"}, true},
		{"ftp alias", Descriptor{Publisher: "pgh", Type: "FTP", File: "zips.csv"}, true},
		{"file", Descriptor{Publisher: "local", Type: "file", File: "zips.csv"}, true},
		{"url", Descriptor{Publisher: "x", Type: "url", File: "z.csv", URL: "https://x/z.csv"}, true},
		{"url without url", Descriptor{Publisher: "x", Type: "url", File: "z.csv"}, false},
		{"missing publisher", Descriptor{Type: "sftp", File: "zips.csv"}, false},
		{"missing type", Descriptor{Publisher: "pgh", File: "zips.csv"}, false},
		{"missing file", Descriptor{Publisher: "pgh", Type: "sftp"}, false},
		{"unknown type", Descriptor{Publisher: "pgh", Type: "gopher", File: "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDescriptor))
		})
	}
}

func TestDescriptor_Paths(t *testing.T) {
	d := Descriptor{Publisher: "pgh", Type: "ftp", File: "zips.csv"}
	assert.Equal(t, "zips.csv", d.RemotePath())
	assert.Equal(t, "pgh:sftp:zips.csv", d.String())

	d.Directory = "exports/"
	assert.Equal(t, "exports/zips.csv", d.RemotePath())
	assert.False(t, d.IsZero())
	assert.True(t, Descriptor{}.IsZero())
}

func TestColumnValues(t *testing.T) {
	values, err := ColumnValues(strings.NewReader(zipsCSV), "Zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"15213", "15217", "15222"}, values)
}

func TestColumnValues_BOMAndRaggedRows(t *testing.T) {
	doc := "\ufeffZip,Name\n15213\n15217,Squirrel Hill\n"
	values, err := ColumnValues(strings.NewReader(doc), "Name")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Squirrel Hill"}, values)

	values, err = ColumnValues(strings.NewReader(doc), "Zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"15213", "15217"}, values)
}

func TestColumnValues_Errors(t *testing.T) {
	_, err := ColumnValues(strings.NewReader(""), "Zip")
	assert.ErrorContains(t, err, "empty")

	_, err = ColumnValues(strings.NewReader(zipsCSV), "Missing")
	assert.ErrorContains(t, err, `no column "Missing"`)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestResolver_FileReference(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "zips.csv", zipsCSV)

	r := NewResolver(t.TempDir())
	values, err := r.Values(context.Background(), Descriptor{
		Publisher: "local", Type: "file", File: "zips.csv", Directory: src,
	}, "Zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"15213", "15217", "15222"}, values)
}

func TestResolver_FieldOverridesDefault(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "zips.csv", zipsCSV)

	r := NewResolver(t.TempDir())
	values, err := r.Values(context.Background(), Descriptor{
		Publisher: "local", Type: "file", File: "zips.csv",
		Directory: src, Field: "Name",
	}, "OwnerZip")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oakland", "Squirrel Hill", "Downtown"}, values)
}

func TestResolver_MissingFile(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Values(context.Background(), Descriptor{
		Publisher: "local", Type: "file", File: "nope.csv", Directory: t.TempDir(),
	}, "Zip")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDescriptor))
}

func TestResolver_InvalidDescriptor(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Values(context.Background(), Descriptor{Type: "file"}, "Zip")
	assert.True(t, errors.Is(err, ErrDescriptor))
}

func TestResolver_NoSFTPByDefault(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Fetch(context.Background(), Descriptor{
		Publisher: "pgh", Type: "ftp", File: "zips.csv",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDescriptor))
	assert.Contains(t, err.Error(), `"sftp"`)
}

type stubFetcher struct {
	content string
	got     Descriptor
}

func (s *stubFetcher) Fetch(_ context.Context, d Descriptor, dir string) (string, error) {
	s.got = d
	p := filepath.Join(dir, d.File)
	return p, os.WriteFile(p, []byte(s.content), 0o644)
}

func TestResolver_CustomFetcher(t *testing.T) {
	stub := &stubFetcher{content: zipsCSV}
	dir := filepath.Join(t.TempDir(), "reference")

	r := NewResolver(dir, WithFetcher(TypeSFTP, stub))
	values, err := r.Values(context.Background(), Descriptor{
		Publisher: "pgh", Type: "ftp", File: "zips.csv",
	}, "Zip")
	require.NoError(t, err)
	assert.Len(t, values, 3)
	assert.Equal(t, "pgh", stub.got.Publisher)
	assert.FileExists(t, filepath.Join(dir, "zips.csv"))
}

func TestGetterFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(zipsCSV))
		},
	))
	defer srv.Close()

	r := NewResolver(t.TempDir())
	values, err := r.Values(context.Background(), Descriptor{
		Publisher: "wprdc", Type: "url", File: "zips.csv",
		URL: srv.URL + "/zips.csv",
	}, "Zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"15213", "15217", "15222"}, values)
}

func TestSFTPFetcher_UnknownPublisher(t *testing.T) {
	f := NewSFTPFetcher(map[string]Publisher{}, nil)
	_, err := f.Fetch(context.Background(), Descriptor{
		Publisher: "pgh", Type: "sftp", File: "zips.csv",
	}, t.TempDir())
	assert.True(t, errors.Is(err, ErrDescriptor))
}

func TestSFTPFetcher_MissingKeyFile(t *testing.T) {
	f := NewSFTPFetcher(map[string]Publisher{
		"pgh": {Host: "127.0.0.1", User: "pitt", KeyFile: filepath.Join(t.TempDir(), "id_rsa")},
	}, nil)
	_, err := f.Fetch(context.Background(), Descriptor{
		Publisher: "pgh", Type: "sftp", File: "zips.csv",
	}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read key file")
}

// writeKey stores a fresh ed25519 private key in dir.
func writeKey(t *testing.T, dir string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	path := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestSFTPFetcher_RequiresKnownHosts(t *testing.T) {
	f := NewSFTPFetcher(map[string]Publisher{
		"pgh": {Host: "127.0.0.1", User: "pitt", KeyFile: writeKey(t, t.TempDir())},
	}, nil)
	_, err := f.Fetch(context.Background(), Descriptor{
		Publisher: "pgh", Type: "sftp", File: "zips.csv",
	}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no known_hosts file configured")
	assert.Contains(t, errors.FlattenHints(err), "known_hosts")
}

// silentPublisher points at a TCP server that accepts connections
// and never says anything.
func silentPublisher(t *testing.T) Publisher {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	dir := t.TempDir()
	knownHosts := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))
	return Publisher{
		Host:       "127.0.0.1",
		Port:       ln.Addr().(*net.TCPAddr).Port,
		User:       "pitt",
		KeyFile:    writeKey(t, dir),
		KnownHosts: knownHosts,
	}
}

func TestSFTPFetcher_StalledHandshakeTimesOut(t *testing.T) {
	f := NewSFTPFetcher(map[string]Publisher{"pgh": silentPublisher(t)}, nil)
	f.timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := f.Fetch(context.Background(), Descriptor{
		Publisher: "pgh", Type: "sftp", File: "zips.csv",
	}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssh handshake")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSFTPFetcher_HandshakeStopsOnCancel(t *testing.T) {
	f := NewSFTPFetcher(map[string]Publisher{"pgh": silentPublisher(t)}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, Descriptor{
		Publisher: "pgh", Type: "sftp", File: "zips.csv",
	}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.csv")
	require.NoError(t, copyFile(dst, strings.NewReader(zipsCSV)))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, zipsCSV, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}
