package modules

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSpecifier is returned for package specifiers that do not
	// parse into a name and optional version.
	ErrMalformedSpecifier = errors.New("malformed package specifier")

	// ErrUnknownReferrer is returned when a module loaded from a package
	// imports a sibling but the package's real path was never recorded.
	ErrUnknownReferrer = errors.New("referrer not found in specifier map")

	// ErrBareSpecifier is returned for bare imports such as "react"; only
	// relative, absolute and pkg: specifiers are resolved.
	ErrBareSpecifier = errors.New("bare specifiers must use the pkg: prefix")

	// ErrModuleNotFound is returned when no file matches a specifier.
	ErrModuleNotFound = errors.New("module not found")
)

// ResolutionError reports a specifier that could not be turned into a key.
type ResolutionError struct {
	Specifier string
	Referrer  string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("cannot resolve %q: %v", e.Specifier, e.Err)
	}
	return fmt.Sprintf("cannot resolve %q from %s: %v", e.Specifier, e.Referrer, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// LoadError reports a resolved module whose source could not be produced.
type LoadError struct {
	Specifier string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Specifier, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
