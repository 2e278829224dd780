package modules

import "sync"

// SpecifierPathMap records the real entry file behind each package
// specifier, so relative imports inside a package resolve against its
// location on disk. Entries are inserted once and never removed.
type SpecifierPathMap struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewSpecifierPathMap creates an empty map.
func NewSpecifierPathMap() *SpecifierPathMap {
	return &SpecifierPathMap{paths: make(map[string]string)}
}

// Insert records path for spec unless an entry exists. It reports whether
// the entry was added.
func (m *SpecifierPathMap) Insert(spec, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.paths[spec]; exists {
		return false
	}
	m.paths[spec] = path
	return true
}

// Lookup returns the recorded path for spec.
func (m *SpecifierPathMap) Lookup(spec string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path, ok := m.paths[spec]
	return path, ok
}

// Len returns the number of recorded specifiers.
func (m *SpecifierPathMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.paths)
}
