package npm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/executejs/backend/internal/shared/paths"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// tempPrefix marks in-progress unpack directories.
const tempPrefix = ".tmp-"

// CachedPackage describes one name@version directory in the cache.
type CachedPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dir     string `json:"dir"`
	Size    int64  `json:"size"`
	Files   int    `json:"files"`
	// Complete is false for entries missing their manifest; the next install
	// of that version refetches them.
	Complete bool `json:"complete"`
}

// ID returns name@version.
func (p CachedPackage) ID() string {
	return p.Name + "@" + p.Version
}

// List walks the cache and reports every cached version, sorted by name then
// version.
func (r *Resolver) List(ctx context.Context) ([]CachedPackage, error) {
	var (
		mu      sync.Mutex
		entries = map[string]*CachedPackage{}
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == r.root {
			return nil
		}

		rel, err := filepath.Rel(r.root, path)
		if err != nil {
			return err
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		name, version, rest, ok := splitCachePath(segments)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), tempPrefix) {
				return fs.SkipDir
			}
			if ok && len(rest) == 0 {
				mu.Lock()
				if _, seen := entries[name+"@"+version]; !seen {
					entries[name+"@"+version] = &CachedPackage{Name: name, Version: version, Dir: path}
				}
				mu.Unlock()
			}
			return nil
		}
		if !ok || len(rest) == 0 {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		mu.Lock()
		defer mu.Unlock()
		entry, seen := entries[name+"@"+version]
		if !seen {
			entry = &CachedPackage{Name: name, Version: version, Dir: filepath.Join(r.root, filepath.FromSlash(name), version)}
			entries[name+"@"+version] = entry
		}
		entry.Size += size
		entry.Files++
		if len(rest) == 2 && rest[0] == paths.PackageSubdir && rest[1] == paths.ManifestFile {
			entry.Complete = true
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("walk cache %s: %w", r.root, err)
	}

	list := make([]CachedPackage, 0, len(entries))
	for _, entry := range entries {
		list = append(list, *entry)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Version < list[j].Version
	})
	return list, nil
}

// Match returns the cached versions whose name@version matches the
// doublestar pattern. "*" does not cross the slash of a scoped name; use
// "@scope/*" or "**".
func (r *Resolver) Match(ctx context.Context, pattern string) ([]CachedPackage, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid prune pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matches := []CachedPackage{}
	for _, entry := range list {
		if doublestar.MatchUnvalidated(pattern, entry.ID()) {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// Prune removes every cached version Match selects.
func (r *Resolver) Prune(ctx context.Context, pattern string) ([]CachedPackage, error) {
	matches, err := r.Match(ctx, pattern)
	if err != nil {
		return nil, err
	}

	removed := []CachedPackage{}
	for _, entry := range matches {
		if !paths.Within(r.root, entry.Dir) || entry.Dir == r.root {
			continue
		}
		if err := os.RemoveAll(entry.Dir); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.ID(), err)
		}
		r.removeEmptyParents(filepath.Dir(entry.Dir))
		removed = append(removed, entry)
		r.logger.Info("pruned cached package", zap.String("package", entry.ID()), zap.Int64("bytes", entry.Size))
	}
	return removed, nil
}

// removeEmptyParents deletes now-empty name and scope directories.
func (r *Resolver) removeEmptyParents(dir string) {
	for dir != r.root && paths.Within(r.root, dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// splitCachePath splits a cache-relative path into package name, version and
// the remainder below the version directory.
func splitCachePath(segments []string) (name, version string, rest []string, ok bool) {
	n := 1
	if strings.HasPrefix(segments[0], "@") {
		n = 2
	}
	if len(segments) < n+1 {
		return "", "", nil, false
	}
	version = segments[n]
	if strings.HasPrefix(version, tempPrefix) {
		return "", "", nil, false
	}
	return strings.Join(segments[:n], "/"), version, segments[n+1:], true
}
