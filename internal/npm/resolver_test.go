package npm

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/registry"
	"github.com/GriffinCanCode/executejs/backend/internal/shared/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, reg *fakeRegistry, rec InstallRecorder) *Resolver {
	t.Helper()
	r, err := NewResolver(Options{
		CacheRoot:       t.TempDir(),
		Registry:        reg.client(),
		VerifyIntegrity: true,
		Recorder:        rec,
	})
	require.NoError(t, err)
	return r
}

func TestNewResolverRequiresRegistry(t *testing.T) {
	_, err := NewResolver(Options{CacheRoot: t.TempDir()})
	assert.Error(t, err)
}

func TestInstallDownloadsOnce(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.publish("left-pad", "1.3.0", map[string]string{
		"package.json": `{"name":"left-pad","version":"1.3.0","main":"index.js"}`,
		"index.js":     `module.exports = function leftPad() {}`,
	})
	rec := &countingRecorder{}
	r := newTestResolver(t, reg, rec)
	ctx := context.Background()

	dir, err := r.Install(ctx, "left-pad", "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.CacheRoot(), "left-pad", "1.3.0"), dir)
	assert.FileExists(t, filepath.Join(dir, "package", "package.json"))
	assert.FileExists(t, filepath.Join(dir, "package", "index.js"))

	again, err := r.Install(ctx, "left-pad", "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, dir, again)

	assert.Equal(t, int32(1), reg.downloads.Load())
	assert.Equal(t, int32(1), reg.metadataHits.Load(), "cache hit must not touch the registry")
	assert.Equal(t, 1, rec.count(ResultMiss))
	assert.Equal(t, 1, rec.count(ResultHit))
}

func TestInstallLatestReusesMetadata(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.publish("tiny", "2.0.0", map[string]string{"package.json": `{"name":"tiny"}`})
	r := newTestResolver(t, reg, nil)

	dir, err := r.Install(context.Background(), "tiny", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.CacheRoot(), "tiny", "2.0.0"), dir)
	assert.Equal(t, int32(1), reg.metadataHits.Load())
	assert.Equal(t, int32(1), reg.downloads.Load())
}

func TestInstallScopedPackage(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.publish("@scope/name", "1.2.3", map[string]string{
		"package.json": `{"name":"@scope/name","module":"esm/index.js"}`,
		"esm/index.js": `export default 1`,
	})
	r := newTestResolver(t, reg, nil)

	dir, err := r.Install(context.Background(), "@scope/name", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.CacheRoot(), "@scope", "name", "1.2.3"), dir)

	entry, err := r.FindEntryPoint(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "package", "esm", "index.js"), entry)
}

func TestInstallNormalizesArchiveRoot(t *testing.T) {
	reg := newFakeRegistry(t)
	data := buildTarball(t, "node", map[string]string{
		"package.json": `{"name":"@types/node"}`,
		"index.d.ts":   `export {}`,
	})
	reg.add("@types/node", "20.0.0", fakeVersion{tarball: data, integrity: sriSHA512(data)})
	r := newTestResolver(t, reg, nil)

	dir, err := r.Install(context.Background(), "@types/node", "20.0.0")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "package", "package.json"))
	assert.FileExists(t, filepath.Join(dir, "package", "index.d.ts"))
	assert.NoDirExists(t, filepath.Join(dir, "package", "node"))
}

func TestInstallRefetchesCorruptEntry(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.publish("corrupt", "1.0.0", map[string]string{"package.json": `{"name":"corrupt"}`})
	r := newTestResolver(t, reg, nil)

	pkg := paths.PackagePath(r.CacheRoot(), "corrupt", "1.0.0")
	require.NoError(t, os.MkdirAll(pkg.UnpackedDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg.UnpackedDir(), "stale.js"), []byte("x"), 0o644))

	dir, err := r.Install(context.Background(), "corrupt", "1.0.0")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "package", "package.json"))
	assert.NoFileExists(t, filepath.Join(dir, "package", "stale.js"))
	assert.Equal(t, int32(1), reg.downloads.Load())
}

func TestInstallConcurrentSameKey(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.downloadDelay = 50 * time.Millisecond
	reg.publish("busy", "1.0.0", map[string]string{"package.json": `{"name":"busy"}`})
	r := newTestResolver(t, reg, nil)

	const callers = 8
	var wg sync.WaitGroup
	dirs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dirs[i], errs[i] = r.Install(context.Background(), "busy", "1.0.0")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, dirs[0], dirs[i])
	}
	assert.Equal(t, int32(1), reg.downloads.Load())
}

func TestInstallIntegrity(t *testing.T) {
	t.Run("sri mismatch", func(t *testing.T) {
		reg := newFakeRegistry(t)
		data := buildTarball(t, "package", map[string]string{"package.json": `{}`})
		other := buildTarball(t, "package", map[string]string{"package.json": `{"tampered":true}`})
		reg.add("evil", "1.0.0", fakeVersion{tarball: data, integrity: sriSHA512(other)})
		rec := &countingRecorder{}
		r := newTestResolver(t, reg, rec)

		_, err := r.Install(context.Background(), "evil", "1.0.0")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChecksumMismatch)

		var checksumErr *ChecksumError
		require.ErrorAs(t, err, &checksumErr)
		assert.Equal(t, "sha512", checksumErr.Algorithm)
		assert.NoDirExists(t, filepath.Join(r.CacheRoot(), "evil", "1.0.0"))
		assert.Equal(t, 1, rec.count(ResultError))
	})

	t.Run("shasum fallback", func(t *testing.T) {
		reg := newFakeRegistry(t)
		data := buildTarball(t, "package", map[string]string{"package.json": `{}`})
		reg.add("legacy", "0.1.0", fakeVersion{tarball: data, shasum: shasum(data)})
		r := newTestResolver(t, reg, nil)

		_, err := r.Install(context.Background(), "legacy", "0.1.0")
		assert.NoError(t, err)
	})

	t.Run("shasum mismatch", func(t *testing.T) {
		reg := newFakeRegistry(t)
		data := buildTarball(t, "package", map[string]string{"package.json": `{}`})
		reg.add("legacy", "0.1.0", fakeVersion{tarball: data, shasum: shasum([]byte("other"))})
		r := newTestResolver(t, reg, nil)

		_, err := r.Install(context.Background(), "legacy", "0.1.0")
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("disabled", func(t *testing.T) {
		reg := newFakeRegistry(t)
		data := buildTarball(t, "package", map[string]string{"package.json": `{}`})
		reg.add("trusting", "1.0.0", fakeVersion{tarball: data, shasum: shasum([]byte("other"))})
		r, err := NewResolver(Options{CacheRoot: t.TempDir(), Registry: reg.client()})
		require.NoError(t, err)

		_, err = r.Install(context.Background(), "trusting", "1.0.0")
		assert.NoError(t, err)
	})
}

func TestInstallErrors(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.add("not-gzip", "1.0.0", fakeVersion{tarball: []byte("<html>oops</html>")})
	reg.add("no-manifest", "1.0.0", fakeVersion{tarball: buildTarball(t, "package", map[string]string{"index.js": "1"})})
	r := newTestResolver(t, reg, nil)
	ctx := context.Background()

	_, err := r.Install(ctx, "missing", "")
	assert.ErrorIs(t, err, registry.ErrPackageNotFound)

	_, err = r.Install(ctx, "not-gzip", "9.9.9")
	assert.ErrorIs(t, err, registry.ErrVersionNotFound)

	_, err = r.Install(ctx, "not-gzip", "1.0.0")
	assert.ErrorIs(t, err, ErrInvalidArchive)

	_, err = r.Install(ctx, "no-manifest", "1.0.0")
	assert.ErrorIs(t, err, ErrInvalidArchive)
	assert.NoDirExists(t, filepath.Join(r.CacheRoot(), "no-manifest", "1.0.0"))

	_, err = r.Install(ctx, "../escape", "1.0.0")
	var installErr *InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "validate", installErr.Step)
}

func TestInstallCancelledWait(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.downloadDelay = 200 * time.Millisecond
	reg.publish("slow", "1.0.0", map[string]string{"package.json": `{}`})
	r := newTestResolver(t, reg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Install(ctx, "slow", "1.0.0")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the detached install still completes for later callers
	dir, err := r.Install(context.Background(), "slow", "1.0.0")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "package", "package.json"))
	assert.Equal(t, int32(1), reg.downloads.Load())
}
