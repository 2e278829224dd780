package modules

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind says how a module was requested.
type Kind int

const (
	KindImport Kind = iota
	KindDynamicImport
	KindRequire
)

func (k Kind) String() string {
	switch k {
	case KindImport:
		return "import"
	case KindDynamicImport:
		return "dynamic-import"
	case KindRequire:
		return "require"
	default:
		return "unknown"
	}
}

// ModuleKey identifies a resolved module: an absolute file path, or a
// package specifier whose resolution is deferred to Load.
type ModuleKey string

// IsPackage reports whether the key is a deferred package specifier.
func (k ModuleKey) IsPackage() bool {
	return IsPackageSpecifier(string(k))
}

// SourceType tells the host how to evaluate loaded text.
type SourceType int

const (
	// TypeScript is executable code of any dialect; the host decides how to
	// compile it from Path's extension.
	TypeScript SourceType = iota
	// TypeJSON is a JSON document exported as a value.
	TypeJSON
)

// Source is the text of a loaded module.
type Source struct {
	Code string
	Type SourceType
	// Path is the real file the code came from.
	Path string
}

// Loader resolves specifiers to keys and keys to source text.
type Loader interface {
	Resolve(specifier, referrer string, kind Kind) (ModuleKey, error)
	Load(ctx context.Context, key ModuleKey) (*Source, error)
}

func sourceTypeFor(path string) SourceType {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return TypeJSON
	}
	return TypeScript
}
