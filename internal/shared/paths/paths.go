package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppName is the application-specific subpath under the user cache directory.
const AppName = "executejs"

// Cache layout
const (
	// PackageSubdir holds the unpacked tarball contents of one cached version.
	PackageSubdir = "package"

	// ManifestFile marks a complete cache entry.
	ManifestFile = "package.json"

	// UserCodeFile is the synthetic file name given to submitted module code.
	UserCodeFile = "user_code.mjs"
)

// DefaultCacheRoot returns the per-user package cache, falling back to the
// system temp dir when no user cache directory is available.
func DefaultCacheRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName, "npm")
}

// CacheRootOr returns dir, or the default cache root when dir is empty.
func CacheRootOr(dir string) string {
	if dir == "" {
		return DefaultCacheRoot()
	}
	return dir
}

// Package returns paths for one cached package version
type Package struct {
	Root    string
	Name    string
	Version string
}

// PackagePath returns paths for name@version under root
func PackagePath(root, name, version string) Package {
	return Package{Root: root, Name: name, Version: version}
}

// Dir returns {root}/{name}/{version}
func (p Package) Dir() string {
	return filepath.Join(p.Root, filepath.FromSlash(p.Name), p.Version)
}

// UnpackedDir returns the directory holding the tarball contents
func (p Package) UnpackedDir() string {
	return filepath.Join(p.Dir(), PackageSubdir)
}

// ManifestPath returns the manifest whose presence marks a cache hit
func (p Package) ManifestPath() string {
	return filepath.Join(p.UnpackedDir(), ManifestFile)
}

// Within reports whether path is root itself or below it.
func Within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// ValidatePackageName checks that a package name is safe for path construction.
// Scoped names have exactly one slash after the leading "@scope".
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, "\\\x00") {
		return fmt.Errorf("package name %q contains invalid characters", name)
	}

	segments := strings.Split(name, "/")
	switch {
	case strings.HasPrefix(name, "@"):
		if len(segments) != 2 || len(segments[0]) < 2 || segments[1] == "" {
			return fmt.Errorf("scoped package name %q must look like @scope/name", name)
		}
	case len(segments) != 1:
		return fmt.Errorf("package name %q cannot contain '/'", name)
	}

	for _, seg := range segments {
		if seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
			return fmt.Errorf("package name %q contains invalid path components", name)
		}
	}
	return nil
}

// ValidateVersion checks that a resolved version is a single safe path segment.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if version == "." || version == ".." || strings.ContainsAny(version, "/\\\x00") {
		return fmt.Errorf("version %q contains invalid path components", version)
	}
	return nil
}
