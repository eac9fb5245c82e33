package refs

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/odvcencio/strata/pkg/metrics"
	"github.com/odvcencio/strata/pkg/object"
)

// MemoryDatabase is a Database held on the heap. One mutex serializes all
// access, which makes every compare-and-swap atomic.
type MemoryDatabase struct {
	mu      sync.Mutex
	refs    map[string]value
	logs    map[string][]ReflogEntry
	metrics *metrics.Collector
}

// NewMemoryDatabase returns an empty ref database. collector may be nil.
func NewMemoryDatabase(collector *metrics.Collector) *MemoryDatabase {
	return &MemoryDatabase{
		refs:    make(map[string]value),
		logs:    make(map[string][]ReflogEntry),
		metrics: collector,
	}
}

func (m *MemoryDatabase) GetRef(name string) (object.ID, bool, error) {
	if err := ValidateName(name); err != nil {
		return object.NullID, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.refs[name]
	if v.symbolic() {
		return object.NullID, false, fmt.Errorf("get ref %q: %w: ref is symbolic", name, ErrKindMismatch)
	}
	return v.id, v.exists, nil
}

func (m *MemoryDatabase) PutRef(name string, id object.ID, expectedOld ...object.ID) (object.ID, error) {
	return m.PutRefReason(name, id, "", expectedOld...)
}

func (m *MemoryDatabase) PutRefReason(name string, id object.ID, reason string, expectedOld ...object.ID) (object.ID, error) {
	if err := ValidateName(name); err != nil {
		return object.NullID, err
	}
	if id.IsNull() {
		return object.NullID, fmt.Errorf("update ref %q: null id, use RemoveRef", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.refs[name]
	if err := checkDirect(name, cur, expectedOld); err != nil {
		m.metrics.RefUpdate(true)
		return cur.id, err
	}
	m.refs[name] = value{exists: true, id: id}
	m.logs[name] = append(m.logs[name], newReflogEntry(name, cur.id, id, reason))
	m.metrics.RefUpdate(false)
	return cur.id, nil
}

func (m *MemoryDatabase) RemoveRef(name string, expectedOld ...object.ID) (object.ID, error) {
	if err := ValidateName(name); err != nil {
		return object.NullID, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.refs[name]
	if err := checkDirect(name, cur, expectedOld); err != nil {
		m.metrics.RefUpdate(true)
		return cur.id, err
	}
	if cur.exists {
		delete(m.refs, name)
		m.logs[name] = append(m.logs[name], newReflogEntry(name, cur.id, object.NullID, "delete"))
	}
	m.metrics.RefUpdate(false)
	return cur.id, nil
}

func (m *MemoryDatabase) GetSymRef(name string) (string, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.refs[name]
	if v.direct() {
		return "", false, fmt.Errorf("get symref %q: %w: ref is not symbolic", name, ErrKindMismatch)
	}
	return v.target, v.exists, nil
}

func (m *MemoryDatabase) PutSymRef(name, target string, expectedOld ...string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := ValidateName(target); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.refs[name]
	if err := checkSymbolic(name, cur, expectedOld); err != nil {
		m.metrics.RefUpdate(true)
		return cur.target, err
	}
	m.refs[name] = value{exists: true, target: target}
	m.metrics.RefUpdate(false)
	return cur.target, nil
}

func (m *MemoryDatabase) RemoveSymRef(name string, expectedOld ...string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.refs[name]
	if err := checkSymbolic(name, cur, expectedOld); err != nil {
		m.metrics.RefUpdate(true)
		return cur.target, err
	}
	delete(m.refs, name)
	m.metrics.RefUpdate(false)
	return cur.target, nil
}

func (m *MemoryDatabase) List(prefix string) ([]Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Ref
	for name, v := range m.refs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, Ref{Name: name, ID: v.id, Target: v.target})
		}
	}
	slices.SortFunc(out, func(a, b Ref) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemoryDatabase) ReadReflog(name string, limit int) ([]ReflogEntry, error) {
	m.mu.Lock()
	entries := slices.Clone(m.logs[name])
	m.mu.Unlock()
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
