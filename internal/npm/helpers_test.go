package npm

import (
	"archive/tar"
	"bytes"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/registry"
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// buildTarball packs files under root/ the way registry tarballs do.
func buildTarball(t *testing.T, root string, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: root + "/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     root + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func sriSHA512(data []byte) string {
	sum := sha512.Sum512(data)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

func shasum(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

type fakeVersion struct {
	tarball   []byte
	integrity string
	shasum    string
}

// fakeRegistry serves packuments and tarballs and counts requests.
type fakeRegistry struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	packages map[string]map[string]fakeVersion
	latest   map[string]string

	metadataHits atomic.Int32
	downloads    atomic.Int32
	// downloadDelay widens the race window in concurrency tests
	downloadDelay time.Duration
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{
		t:        t,
		packages: map[string]map[string]fakeVersion{},
		latest:   map[string]string{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRegistry) add(name, version string, v fakeVersion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.packages[name] == nil {
		f.packages[name] = map[string]fakeVersion{}
	}
	f.packages[name][version] = v
	f.latest[name] = version
}

// publish adds a version with a valid sha512 integrity string.
func (f *fakeRegistry) publish(name, version string, files map[string]string) []byte {
	data := buildTarball(f.t, "package", files)
	f.add(name, version, fakeVersion{tarball: data, integrity: sriSHA512(data)})
	return data
}

func (f *fakeRegistry) client() *registry.Client {
	return registry.New(registry.Options{BaseURL: f.server.URL, Timeout: 5 * time.Second})
}

func (f *fakeRegistry) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/tarballs/") {
		f.serveTarball(w, r)
		return
	}

	name, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.metadataHits.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	versions, ok := f.packages[name]
	if !ok {
		http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
		return
	}

	doc := registry.Packument{
		Name:     name,
		DistTags: map[string]string{"latest": f.latest[name]},
		Versions: map[string]registry.VersionInfo{},
	}
	for version, v := range versions {
		doc.Versions[version] = registry.VersionInfo{
			Name:    name,
			Version: version,
			Dist: registry.Dist{
				Tarball:   fmt.Sprintf("%s/tarballs/%s/%s.tgz", f.server.URL, url.PathEscape(name), version),
				Integrity: v.integrity,
				Shasum:    v.shasum,
			},
		}
	}
	body, err := sonic.Marshal(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (f *fakeRegistry) serveTarball(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/tarballs/")
	escapedName, file, ok := strings.Cut(rest, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	name, _ := url.PathUnescape(escapedName)
	version := strings.TrimSuffix(file, ".tgz")

	f.downloads.Add(1)
	if f.downloadDelay > 0 {
		time.Sleep(f.downloadDelay)
	}

	f.mu.Lock()
	v, ok := f.packages[name][version]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(v.tarball)
}

// countingRecorder collects install outcomes.
type countingRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (c *countingRecorder) RecordInstall(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[string]int{}
	}
	c.results[result]++
}

func (c *countingRecorder) count(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[result]
}
