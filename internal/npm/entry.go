package npm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/executejs/backend/internal/shared/paths"
	"go.uber.org/zap"
)

// FallbackEntry is used when no manifest field names an entry point.
const FallbackEntry = "index.js"

// entryRule is one lookup in the entry-point priority list.
type entryRule struct {
	name    string
	resolve func(m *Manifest) (string, bool)
}

func nonEmpty(s string) (string, bool) { return s, s != "" }

// entryRules are evaluated in order; the first match wins. ES module targets
// come first with CommonJS as the fallback.
var entryRules = []entryRule{
	{name: `exports["."].import`, resolve: func(m *Manifest) (string, bool) {
		return m.Exports.Root().Condition("import")
	}},
	{name: "module", resolve: func(m *Manifest) (string, bool) {
		return nonEmpty(m.Module)
	}},
	{name: `exports["."]`, resolve: func(m *Manifest) (string, bool) {
		return nonEmpty(m.Exports.Root().Path)
	}},
	{name: `exports["."].require`, resolve: func(m *Manifest) (string, bool) {
		return m.Exports.Root().Condition("require")
	}},
	{name: "main", resolve: func(m *Manifest) (string, bool) {
		return nonEmpty(m.Main)
	}},
}

// EntryPoint returns the manifest-relative entry file and the rule that
// selected it.
func (m *Manifest) EntryPoint() (file, rule string) {
	for _, r := range entryRules {
		if file, ok := r.resolve(m); ok {
			return file, r.name
		}
	}
	return FallbackEntry, "fallback"
}

// TypeDefinitions returns the manifest-relative typing file, if declared.
func (m *Manifest) TypeDefinitions() (string, bool) {
	if m.Types != "" {
		return m.Types, true
	}
	return nonEmpty(m.Typings)
}

// FindEntryPoint returns the absolute entry file of the package installed at
// dir (as returned by Install). The file is not required to exist; reading
// it reports the problem.
func (r *Resolver) FindEntryPoint(dir string) (string, error) {
	root := filepath.Join(dir, paths.PackageSubdir)
	m, err := ReadManifest(filepath.Join(root, paths.ManifestFile))
	if err != nil {
		return "", err
	}

	file, rule := m.EntryPoint()
	full, err := packageFile(root, file)
	if err != nil {
		return "", err
	}

	r.logger.Debug("entry point resolved",
		zap.String("package", m.Name),
		zap.String("rule", rule),
		zap.String("path", full))
	return full, nil
}

// FindTypeDefinitions returns the package's typing file when the manifest
// declares one and it exists on disk.
func (r *Resolver) FindTypeDefinitions(dir string) (string, bool, error) {
	root := filepath.Join(dir, paths.PackageSubdir)
	manifestPath := filepath.Join(root, paths.ManifestFile)
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		return "", false, nil
	}

	m, err := ReadManifest(manifestPath)
	if err != nil {
		return "", false, err
	}

	file, ok := m.TypeDefinitions()
	if !ok {
		if m.Name != "" && m.Name[0] != '@' {
			r.logger.Debug("package ships no typings",
				zap.String("package", m.Name),
				zap.String("hint", "@types/"+m.Name))
		}
		return "", false, nil
	}

	full, err := packageFile(root, file)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(full); err != nil {
		r.logger.Debug("declared typings missing", zap.String("path", full))
		return "", false, nil
	}
	return full, true, nil
}

// packageFile joins a manifest-relative path onto root, refusing paths that
// leave the package.
func packageFile(root, rel string) (string, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !paths.Within(root, full) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, rel)
	}
	return full, nil
}
