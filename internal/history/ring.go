package history

import (
	"sync"

	"github.com/GriffinCanCode/executejs/backend/internal/execution"
)

// DefaultCapacity is the number of records kept when none is configured.
const DefaultCapacity = 100

// Ring keeps the most recent execution records in insertion order. Once
// full, recording evicts the oldest entry.
type Ring struct {
	mu      sync.Mutex
	entries []*execution.ExecutionResult // Protected by mu
	head    int                          // index of the oldest entry
	size    int
}

// NewRing creates a ring holding up to capacity records. A non-positive
// capacity selects DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]*execution.ExecutionResult, capacity)}
}

// Record appends a result.
func (r *Ring) Record(result *execution.ExecutionResult) {
	if result == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.head+r.size)%capacity] = result
		r.size++
		return
	}
	r.entries[r.head] = result
	r.head = (r.head + 1) % capacity
}

// List returns a snapshot, oldest first.
func (r *Ring) List() []*execution.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*execution.ExecutionResult, r.size)
	for i := range out {
		out[i] = r.entries[(r.head+i)%len(r.entries)]
	}
	return out
}

// Clear drops every record.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.entries)
	r.head, r.size = 0, 0
}

// Len returns the number of records held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the maximum number of records held.
func (r *Ring) Cap() int {
	return len(r.entries)
}
