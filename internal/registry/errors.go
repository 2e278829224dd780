package registry

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRegistry classifies every failed registry exchange.
	ErrRegistry = errors.New("registry request failed")

	// ErrPackageNotFound is reported for a 404 on the package document.
	ErrPackageNotFound = errors.New("package not found")

	// ErrVersionNotFound is reported when a dist-tag or version is missing
	// from an otherwise valid package document.
	ErrVersionNotFound = errors.New("version not found")
)

// StatusError is returned for non-2xx registry responses.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error returns a description naming the URL and status.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets callers match ErrRegistry for any status and ErrPackageNotFound for 404.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRegistry:
		return true
	case ErrPackageNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// clientError reports whether err is the caller's fault rather than a sign
// of an unhealthy registry.
func clientError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
			statusErr.StatusCode != http.StatusTooManyRequests
	}
	return errors.Is(err, ErrVersionNotFound)
}
