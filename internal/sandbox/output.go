package sandbox

import (
	"strings"
	"sync"
)

// ErrorMarker prefixes stderr lines in rendered output.
const ErrorMarker = "[ERROR] "

// OutputBuffer records the lines one execution printed.
type OutputBuffer struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
}

// NewOutputBuffer creates an empty buffer.
func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

func (b *OutputBuffer) AppendStdout(line string) {
	b.mu.Lock()
	b.stdout = append(b.stdout, line)
	b.mu.Unlock()
}

func (b *OutputBuffer) AppendStderr(line string) {
	b.mu.Lock()
	b.stderr = append(b.stderr, line)
	b.mu.Unlock()
}

// Empty reports whether nothing was printed.
func (b *OutputBuffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stdout) == 0 && len(b.stderr) == 0
}

// Lines returns copies of both streams.
func (b *OutputBuffer) Lines() (stdout, stderr []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.stdout...), append([]string(nil), b.stderr...)
}

// Render joins all stdout lines followed by all stderr lines, the latter
// prefixed with ErrorMarker. Order is kept within each stream only.
func (b *OutputBuffer) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := make([]string, 0, len(b.stdout)+len(b.stderr))
	lines = append(lines, b.stdout...)
	for _, line := range b.stderr {
		lines = append(lines, ErrorMarker+line)
	}
	return strings.Join(lines, "\n")
}
