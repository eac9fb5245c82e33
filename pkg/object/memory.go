package object

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryBackend keeps envelopes on the heap. The zero value is not usable;
// call NewMemoryBackend.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[ID][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[ID][]byte)}
}

func (m *MemoryBackend) Exists(id ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok, nil
}

func (m *MemoryBackend) Get(id ID) ([]byte, error) {
	m.mu.RLock()
	raw, ok := m.objects[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	return slices.Clone(raw), nil
}

func (m *MemoryBackend) Put(id ID, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		m.objects[id] = slices.Clone(raw)
	}
	return nil
}

func (m *MemoryBackend) Lookup(prefix string) ([]ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ID
	for id := range m.objects {
		if id.HasPrefix(prefix) {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out, nil
}

func (m *MemoryBackend) Delete(id ID) error {
	m.mu.Lock()
	delete(m.objects, id)
	m.mu.Unlock()
	return nil
}

// ForEach visits every stored object. fn must not call back into m.
func (m *MemoryBackend) ForEach(fn func(id ID, raw []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, raw := range m.objects {
		if err := fn(id, raw); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryBackend) Close() error { return nil }

func sortIDs(ids []ID) {
	slices.SortFunc(ids, func(a, b ID) int {
		return strings.Compare(string(a[:]), string(b[:]))
	})
}

// Clear drops every stored object.
func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	m.objects = make(map[ID][]byte)
	m.mu.Unlock()
	return nil
}
