package npm

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
)

// Manifest is the subset of package.json used for entry-point and typing
// resolution.
type Manifest struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Main    string   `json:"main"`
	Module  string   `json:"module"`
	Types   string   `json:"types"`
	Typings string   `json:"typings"`
	Exports *Exports `json:"exports"`
}

// Target is one node of an exports map: either a path or a set of
// conditions ("import", "require", "default", ...) pointing at further
// targets.
type Target struct {
	Path       string
	Conditions map[string]Target
}

// Condition returns the path under a condition key. A condition may be a path
// itself or a nested object whose "default" key holds the path.
func (t Target) Condition(name string) (string, bool) {
	c, ok := t.Conditions[name]
	if !ok {
		return "", false
	}
	if c.Path != "" {
		return c.Path, true
	}
	if d, ok := c.Conditions["default"]; ok && d.Path != "" {
		return d.Path, true
	}
	return "", false
}

// Exports is the parsed "exports" field keyed by subpath.
type Exports struct {
	Subpaths map[string]Target
}

// Root returns the "." target.
func (e *Exports) Root() Target {
	if e == nil {
		return Target{}
	}
	return e.Subpaths["."]
}

// UnmarshalJSON normalizes the shapes Node accepts: a bare string, a
// conditions object without subpath keys, and a subpath map. Both shorthand
// forms describe the "." entry.
func (e *Exports) UnmarshalJSON(data []byte) error {
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Subpaths = map[string]Target{}
	switch v := raw.(type) {
	case nil:
	case string, []any:
		e.Subpaths["."] = parseTarget(v)
	case map[string]any:
		if !hasSubpathKeys(v) {
			e.Subpaths["."] = parseTarget(v)
			return nil
		}
		for key, value := range v {
			if strings.HasPrefix(key, ".") {
				e.Subpaths[key] = parseTarget(value)
			}
		}
	default:
		return fmt.Errorf("unsupported exports value of type %T", raw)
	}
	return nil
}

func hasSubpathKeys(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

func parseTarget(v any) Target {
	switch t := v.(type) {
	case string:
		return Target{Path: t}
	case map[string]any:
		conditions := make(map[string]Target, len(t))
		for key, value := range t {
			conditions[key] = parseTarget(value)
		}
		return Target{Conditions: conditions}
	case []any:
		// fallback arrays: first usable alternative wins
		for _, alt := range t {
			if target := parseTarget(alt); target.Path != "" || len(target.Conditions) > 0 {
				return target
			}
		}
	}
	return Target{}
}

// ParseManifest decodes package.json bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

// ReadManifest reads and decodes the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
