package modules

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Extensions tried, in order, when a specifier has no exact match.
var Extensions = []string{".js", ".mjs", ".cjs", ".ts", ".mts", ".cts", ".json"}

// FSLoader resolves relative, absolute and file:// specifiers on the local
// filesystem. It knows nothing about packages.
type FSLoader struct{}

// NewFSLoader returns the plain filesystem loader.
func NewFSLoader() *FSLoader {
	return &FSLoader{}
}

// Resolve resolves spec against the directory of referrer, an absolute file
// path.
func (l *FSLoader) Resolve(spec, referrer string, kind Kind) (ModuleKey, error) {
	if IsPackageSpecifier(spec) {
		return "", &ResolutionError{Specifier: spec, Referrer: referrer, Err: fmt.Errorf("package imports are unavailable")}
	}

	target, err := l.target(spec, referrer)
	if err != nil {
		return "", &ResolutionError{Specifier: spec, Referrer: referrer, Err: err}
	}

	resolved, ok := lookupFile(target)
	if !ok {
		return "", &ResolutionError{Specifier: spec, Referrer: referrer, Err: ErrModuleNotFound}
	}
	return ModuleKey(resolved), nil
}

func (l *FSLoader) target(spec, referrer string) (string, error) {
	switch {
	case strings.HasPrefix(spec, "file://"):
		u, err := url.Parse(spec)
		if err != nil {
			return "", fmt.Errorf("invalid file URL: %w", err)
		}
		return filepath.FromSlash(u.Path), nil
	case filepath.IsAbs(spec):
		return filepath.Clean(spec), nil
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return filepath.Join(filepath.Dir(referrer), filepath.FromSlash(spec)), nil
	default:
		return "", ErrBareSpecifier
	}
}

// lookupFile tries the exact path, then each extension, then index files inside
// a directory.
func lookupFile(target string) (string, bool) {
	if isFile(target) {
		return target, true
	}
	for _, ext := range Extensions {
		if isFile(target + ext) {
			return target + ext, true
		}
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		for _, ext := range Extensions {
			index := filepath.Join(target, "index"+ext)
			if isFile(index) {
				return index, true
			}
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads the file behind key.
func (l *FSLoader) Load(_ context.Context, key ModuleKey) (*Source, error) {
	if key.IsPackage() {
		return nil, &LoadError{Specifier: string(key), Err: fmt.Errorf("package imports are unavailable")}
	}
	return readSource(string(key), string(key))
}

func readSource(specifier, path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Specifier: specifier, Err: err}
	}
	return &Source{Code: string(data), Type: sourceTypeFor(path), Path: path}, nil
}
