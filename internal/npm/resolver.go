package npm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/registry"
	"github.com/GriffinCanCode/executejs/backend/internal/shared/paths"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Install outcomes reported to the InstallRecorder.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// tempDirAttempts bounds how often unpackInto recreates a pruned parent.
const tempDirAttempts = 3

// Registry is the subset of the registry client the resolver needs.
type Registry interface {
	Metadata(ctx context.Context, name string) (*registry.Packument, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// InstallRecorder observes install outcomes (hit, miss, error).
type InstallRecorder interface {
	RecordInstall(result string)
}

// Options configures a Resolver.
type Options struct {
	CacheRoot       string
	Registry        Registry
	VerifyIntegrity bool
	Logger          *logging.Logger
	Recorder        InstallRecorder
}

// Resolver installs registry packages into the on-disk cache.
type Resolver struct {
	root     string
	registry Registry
	verify   bool
	logger   *logging.Logger
	recorder InstallRecorder

	// installs serializes check-fetch-unpack per name@version
	installs singleflight.Group
}

// NewResolver creates a resolver rooted at opts.CacheRoot, creating the
// directory when needed.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Registry == nil {
		return nil, errors.New("npm resolver requires a registry client")
	}

	root, err := filepath.Abs(paths.CacheRootOr(opts.CacheRoot))
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %w", root, err)
	}

	return &Resolver{
		root:     root,
		registry: opts.Registry,
		verify:   opts.VerifyIntegrity,
		logger:   logging.OrNop(opts.Logger).Named("npm"),
		recorder: opts.Recorder,
	}, nil
}

// CacheRoot returns the absolute cache directory.
func (r *Resolver) CacheRoot() string {
	return r.root
}

// Install makes name@version available in the cache and returns its
// directory, {cacheRoot}/{name}/{version}. An empty version resolves to the
// "latest" dist-tag. A cached entry is trusted as long as its manifest exists.
func (r *Resolver) Install(ctx context.Context, name, version string) (string, error) {
	if err := paths.ValidatePackageName(name); err != nil {
		return "", &InstallError{Package: name, Version: version, Step: "validate", Err: err}
	}

	var doc *registry.Packument
	if version == "" {
		var err error
		doc, err = r.registry.Metadata(ctx, name)
		if err != nil {
			r.record(ResultError)
			return "", &InstallError{Package: name, Step: "resolve latest", Err: err}
		}
		if version, err = doc.Latest(); err != nil {
			r.record(ResultError)
			return "", &InstallError{Package: name, Step: "resolve latest", Err: err}
		}
		r.logger.Debug("resolved latest version", zap.String("package", name), zap.String("version", version))
	}
	if err := paths.ValidateVersion(version); err != nil {
		return "", &InstallError{Package: name, Version: version, Step: "validate", Err: err}
	}

	key := name + "@" + version
	// the install outlives a cancelled caller so other waiters still get it
	ch := r.installs.DoChan(key, func() (any, error) {
		return r.install(context.WithoutCancel(ctx), name, version, doc)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &InstallError{Package: name, Version: version, Step: "wait", Err: ctx.Err()}
	}
}

func (r *Resolver) install(ctx context.Context, name, version string, doc *registry.Packument) (string, error) {
	pkg := paths.PackagePath(r.root, name, version)
	log := r.logger.With(zap.String("package", name), zap.String("version", version))

	if _, err := os.Stat(pkg.ManifestPath()); err == nil {
		log.Debug("cache hit", zap.String("dir", pkg.Dir()))
		r.record(ResultHit)
		return pkg.Dir(), nil
	}
	if _, err := os.Stat(pkg.Dir()); err == nil {
		log.Warn("cache entry has no manifest, refetching", zap.String("dir", pkg.Dir()))
	}

	fail := func(step string, err error) (string, error) {
		r.record(ResultError)
		log.Debug("install failed", zap.String("step", step), zap.Error(err))
		return "", &InstallError{Package: name, Version: version, Step: step, Err: err}
	}

	start := time.Now()
	if doc == nil {
		var err error
		if doc, err = r.registry.Metadata(ctx, name); err != nil {
			return fail("fetch metadata", err)
		}
	}
	info, err := doc.Version(version)
	if err != nil {
		return fail("fetch metadata", err)
	}

	data, err := r.registry.Download(ctx, info.Dist.Tarball)
	if err != nil {
		return fail("download", err)
	}

	if r.verify {
		checked, err := verifyIntegrity(name+"@"+version, info.Dist, data)
		if err != nil {
			return fail("verify", err)
		}
		if !checked {
			log.Debug("registry published no digest, skipping integrity check")
		}
	}

	files, err := r.unpackInto(ctx, pkg, data)
	if err != nil {
		return fail("unpack", err)
	}

	log.Info("package installed",
		zap.String("dir", pkg.Dir()),
		zap.Int("files", files),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	r.record(ResultMiss)
	return pkg.Dir(), nil
}

// unpackInto extracts into a sibling temp dir and renames it into place, so
// the manifest only appears once the whole tree is on disk.
func (r *Resolver) unpackInto(ctx context.Context, pkg paths.Package, data []byte) (int, error) {
	tmp, err := tempDirUnder(filepath.Dir(pkg.Dir()), tempPrefix+pkg.Version+"-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tmp)
	if err := os.Chmod(tmp, 0o755); err != nil {
		return 0, fmt.Errorf("chmod temp dir: %w", err)
	}

	unpacked := filepath.Join(tmp, paths.PackageSubdir)
	files, err := unpack(ctx, data, unpacked)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(filepath.Join(unpacked, paths.ManifestFile)); err != nil {
		return 0, fmt.Errorf("%w: archive has no %s", ErrInvalidArchive, paths.ManifestFile)
	}

	if err := os.RemoveAll(pkg.Dir()); err != nil {
		return 0, fmt.Errorf("remove stale %s: %w", pkg.Dir(), err)
	}
	if err := os.Rename(tmp, pkg.Dir()); err != nil {
		return 0, fmt.Errorf("move into place: %w", err)
	}
	return files, nil
}

// tempDirUnder creates a temp dir below parent. A prune of a sibling version
// may remove the empty parent between the two steps, so a vanished parent is
// recreated and the step retried. Once the temp dir exists the parent is no
// longer empty and prunes leave it alone.
func tempDirUnder(parent, pattern string) (string, error) {
	var err error
	for range tempDirAttempts {
		if err = os.MkdirAll(parent, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", parent, err)
		}
		var tmp string
		if tmp, err = os.MkdirTemp(parent, pattern); err == nil {
			return tmp, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	return "", fmt.Errorf("create temp dir: %w", err)
}

func (r *Resolver) record(result string) {
	if r.recorder != nil {
		r.recorder.RecordInstall(result)
	}
}
