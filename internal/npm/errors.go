package npm

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch indicates the downloaded tarball does not match the
	// digest published in the registry metadata.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidArchive indicates the payload is not a readable gzip tarball.
	ErrInvalidArchive = errors.New("invalid package archive")

	// ErrInvalidManifest indicates package.json could not be parsed.
	ErrInvalidManifest = errors.New("invalid package manifest")

	// ErrUnsafeEntry indicates a tar entry that would land outside the package dir.
	ErrUnsafeEntry = errors.New("archive entry escapes package directory")
)

// ChecksumError provides details about an integrity verification failure.
// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
type ChecksumError struct {
	Package   string
	Algorithm string
	Expected  string
	Got       string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s integrity check failed for %s: expected %s, got %s",
		e.Algorithm, e.Package, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// InstallError records which step of an install failed.
type InstallError struct {
	Package string
	Version string
	Step    string
	Err     error
}

func (e *InstallError) Error() string {
	id := e.Package
	if e.Version != "" {
		id += "@" + e.Version
	}
	return fmt.Sprintf("install %s: %s: %v", id, e.Step, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }
