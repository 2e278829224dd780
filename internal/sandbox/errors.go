package sandbox

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the deadline passes or the context is
// cancelled before the event loop drains.
var ErrTimeout = errors.New("execution timed out")

// ScriptError carries the engine's diagnostic for code that failed to parse
// or threw.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string { return e.Message }

// BootstrapError is returned when the prelude could not be installed.
type BootstrapError struct {
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap failed: %v", e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }
