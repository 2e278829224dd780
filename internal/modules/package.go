package modules

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// PackageResolver is the part of the npm resolver the loader drives.
type PackageResolver interface {
	Install(ctx context.Context, name, version string) (string, error)
	FindEntryPoint(dir string) (string, error)
}

// PackageLoader adds pkg: specifiers on top of filesystem resolution.
type PackageLoader struct {
	resolver PackageResolver
	fs       *FSLoader
	paths    *SpecifierPathMap
	logger   *logging.Logger
}

// NewPackageLoader creates a package-aware loader. The path map is usually
// shared by every loader in the process.
func NewPackageLoader(resolver PackageResolver, paths *SpecifierPathMap, logger *logging.Logger) (*PackageLoader, error) {
	if resolver == nil {
		return nil, errors.New("package loader requires a resolver")
	}
	if paths == nil {
		paths = NewSpecifierPathMap()
	}
	return &PackageLoader{
		resolver: resolver,
		fs:       NewFSLoader(),
		paths:    paths,
		logger:   logging.OrNop(logger).Named("loader"),
	}, nil
}

// Resolve defers package specifiers to Load, maps package referrers back to
// their files and resolves everything else on the filesystem.
func (l *PackageLoader) Resolve(spec, referrer string, kind Kind) (ModuleKey, error) {
	if IsPackageSpecifier(spec) {
		l.logger.Debug("deferring package specifier",
			zap.String("specifier", spec),
			zap.Stringer("kind", kind))
		return ModuleKey(spec), nil
	}

	if IsPackageSpecifier(referrer) {
		realPath, ok := l.paths.Lookup(referrer)
		if !ok {
			return "", &ResolutionError{Specifier: spec, Referrer: referrer, Err: ErrUnknownReferrer}
		}
		l.logger.Debug("resolving against package path",
			zap.String("specifier", spec),
			zap.String("referrer", referrer),
			zap.String("path", realPath))
		referrer = realPath
	}

	return l.fs.Resolve(spec, referrer, kind)
}

type installResult struct {
	dir string
	err error
}

// Load installs the package behind a pkg: key and returns its entry file.
// Filesystem keys are read directly.
func (l *PackageLoader) Load(ctx context.Context, key ModuleKey) (*Source, error) {
	if !key.IsPackage() {
		return l.fs.Load(ctx, key)
	}
	spec := string(key)

	name, version, err := ParseSpecifier(spec)
	if err != nil {
		return nil, &LoadError{Specifier: spec, Err: err}
	}

	start := time.Now()
	done := make(chan installResult, 1)
	go func() {
		dir, err := l.resolver.Install(ctx, name, version)
		done <- installResult{dir: dir, err: err}
	}()

	var res installResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, &LoadError{Specifier: spec, Err: ctx.Err()}
	}
	if res.err != nil {
		return nil, &LoadError{Specifier: spec, Err: res.err}
	}

	entry, err := l.resolver.FindEntryPoint(res.dir)
	if err != nil {
		return nil, &LoadError{Specifier: spec, Err: err}
	}
	if l.paths.Insert(spec, entry) {
		l.logger.Debug("recorded package path", zap.String("specifier", spec), zap.String("path", entry))
	}

	src, err := readSource(spec, entry)
	if err != nil {
		return nil, err
	}
	// entry files execute as scripts whatever their extension says
	src.Type = TypeScript

	l.logger.Debug("package loaded",
		zap.String("specifier", spec),
		zap.String("entry", entry),
		zap.Duration("elapsed", time.Since(start)))
	return src, nil
}
