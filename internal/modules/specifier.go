package modules

import (
	"fmt"
	"strings"
)

// PackagePrefix marks specifiers resolved through the package registry.
const PackagePrefix = "pkg:"

// IsPackageSpecifier reports whether spec carries the package prefix.
func IsPackageSpecifier(spec string) bool {
	return strings.HasPrefix(spec, PackagePrefix)
}

// ParseSpecifier splits "pkg:name@version" into its parts. Scoped names keep
// their leading "@": the last "@" after the scope separates the version.
// An absent version is returned as "".
func ParseSpecifier(spec string) (name, version string, err error) {
	if !IsPackageSpecifier(spec) {
		return "", "", fmt.Errorf("%w: %q lacks the %s prefix", ErrMalformedSpecifier, spec, PackagePrefix)
	}
	body := strings.TrimPrefix(spec, PackagePrefix)

	// version separator search starts after "@scope/"
	searchFrom := 0
	if strings.HasPrefix(body, "@") {
		slash := strings.Index(body, "/")
		if slash < 2 || slash == len(body)-1 {
			return "", "", fmt.Errorf("%w: %q", ErrMalformedSpecifier, spec)
		}
		searchFrom = slash + 1
	}

	name = body
	if at := strings.LastIndex(body[searchFrom:], "@"); at >= 0 {
		name = body[:searchFrom+at]
		version = body[searchFrom+at+1:]
		if version == "" {
			return "", "", fmt.Errorf("%w: %q has an empty version", ErrMalformedSpecifier, spec)
		}
	}

	if name == "" || strings.HasSuffix(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedSpecifier, spec)
	}
	return name, version, nil
}

// FormatSpecifier builds a package specifier.
func FormatSpecifier(name, version string) string {
	if version == "" {
		return PackagePrefix + name
	}
	return PackagePrefix + name + "@" + version
}
