package execution

import (
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/shared/id"
)

// ValidationMessage is the error reported for empty or whitespace-only input.
const ValidationMessage = "empty code"

// FailurePrefix starts the error message of every failed execution that
// reached the engine.
const FailurePrefix = "execution failed: "

// ExecutionResult is the record of one submission. Result holds the rendered
// output on success and is empty on failure, where Error carries the message.
type ExecutionResult struct {
	ID        id.ExecutionID `json:"id"`
	Code      string         `json:"code"`
	File      string         `json:"file,omitempty"`
	Result    string         `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Error     *string        `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
	Mode      string         `json:"mode,omitempty"`
	Output    Output         `json:"output"`
}

// Output is the captured console output, split by stream.
type Output struct {
	Stdout []string `json:"stdout"`
	Stderr []string `json:"stderr"`
}

// ErrorMessage returns the error text, or "" for a successful result.
func (r *ExecutionResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}
