package sandbox

import (
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/modules"
)

// NoOutput replaces an empty render on success.
const NoOutput = "execution completed, no output"

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Bounds the whole execution, event loop included; 0 disables
	BaseDir          string        // Directory user code imports are resolved against
	MaxCallStackSize int           // 0 keeps the engine default
}

// DefaultConfig returns the defaults used by the service.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		MaxCallStackSize: 1024,
	}
}

// LoaderFactory builds the module loader for one execution.
type LoaderFactory func() (modules.Loader, error)

// Mode is the dispatch path chosen for submitted code.
type Mode int

const (
	ModeScript Mode = iota
	ModeModule
)

func (m Mode) String() string {
	if m == ModeModule {
		return "module"
	}
	return "script"
}

// State is a step of one execution.
type State int

const (
	StateIdle State = iota
	StateEngineInitialized
	StateBootstrapExecuted
	StateUserCodeDispatched
	StateEventLoopDrained
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEngineInitialized:
		return "engine_initialized"
	case StateBootstrapExecuted:
		return "bootstrap_executed"
	case StateUserCodeDispatched:
		return "user_code_dispatched"
	case StateEventLoopDrained:
		return "event_loop_drained"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Result holds execution result
type Result struct {
	Output   string        // Rendered output; NoOutput when a success printed nothing
	Stdout   []string      // Captured stdout lines
	Stderr   []string      // Captured stderr lines
	Mode     Mode          // Dispatch path
	State    State         // Terminal state
	Reached  State         // Last non-terminal state entered
	Duration time.Duration // Execution time
	Error    error         // Execution error
}

// Succeeded reports whether the execution ended in StateSucceeded.
func (r *Result) Succeeded() bool {
	return r.State == StateSucceeded
}
