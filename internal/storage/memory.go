package storage

import (
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"sync"
)

// Memory implements Backend with an in-process map. It is used by tests and
// for dry runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// List returns every key in ascending order.
func (m *Memory) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for k := range m.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Read returns a copy of the document stored under key.
func (m *Memory) Read(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", key, fs.ErrNotExist)
	}
	return slices.Clone(data), nil
}

// Write stores a copy of content under key.
func (m *Memory) Write(key string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = slices.Clone(content)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[key]; !ok {
		return fmt.Errorf("storage: delete %s: %w", key, fs.ErrNotExist)
	}
	delete(m.docs, key)
	return nil
}
