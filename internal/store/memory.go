package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/leavend/refgen/internal/domain"
)

// Memory keeps collections in process. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu          sync.RWMutex
	connected   bool
	collections map[Collection][]Document
}

// NewMemory returns an unopened in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[Collection][]Document)}
}

func (m *Memory) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *Memory) Insert(ctx context.Context, c Collection, doc Document) (string, error) {
	if err := validateCollection(c); err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	id, err := documentID(doc)
	if err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	stored, err := normalize(doc)
	if err != nil {
		return "", domain.StoreFailure("insert", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", domain.StoreFailure("insert", ErrNotConnected)
	}
	m.collections[c] = append(m.collections[c], stored)
	return id, nil
}

func (m *Memory) Find(ctx context.Context, c Collection, f Filter) ([]Document, error) {
	if err := checkQuery(c, f); err != nil {
		return nil, domain.StoreFailure("find", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, domain.StoreFailure("find", ErrNotConnected)
	}
	out := []Document{}
	for _, doc := range m.collections[c] {
		if matches(doc, f) {
			copied, err := normalize(doc)
			if err != nil {
				return nil, domain.StoreFailure("find", err)
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

func (m *Memory) FindOne(ctx context.Context, c Collection, f Filter) (Document, error) {
	if err := checkQuery(c, f); err != nil {
		return nil, domain.StoreFailure("find", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, domain.StoreFailure("find", ErrNotConnected)
	}
	for _, doc := range m.collections[c] {
		if matches(doc, f) {
			copied, err := normalize(doc)
			if err != nil {
				return nil, domain.StoreFailure("find", err)
			}
			return copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) Update(ctx context.Context, c Collection, f Filter, patch Document) (int64, error) {
	if err := checkQuery(c, f); err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	if err := validatePatch(patch); err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	normalized, err := normalize(patch)
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, domain.StoreFailure("update", ErrNotConnected)
	}
	var n int64
	for _, doc := range m.collections[c] {
		if !matches(doc, f) {
			continue
		}
		for k, v := range normalized {
			doc[k] = v
		}
		n++
	}
	return n, nil
}

func (m *Memory) Remove(ctx context.Context, c Collection, f Filter) (int64, error) {
	if err := checkQuery(c, f); err != nil {
		return 0, domain.StoreFailure("remove", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, domain.StoreFailure("remove", ErrNotConnected)
	}
	docs := m.collections[c]
	kept := docs[:0]
	var n int64
	for _, doc := range docs {
		if matches(doc, f) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	m.collections[c] = kept
	return n, nil
}

func (m *Memory) Count(ctx context.Context, c Collection) (int64, error) {
	if err := validateCollection(c); err != nil {
		return 0, domain.StoreFailure("count", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return 0, domain.StoreFailure("count", ErrNotConnected)
	}
	return int64(len(m.collections[c])), nil
}

func checkQuery(c Collection, f Filter) error {
	if err := validateCollection(c); err != nil {
		return err
	}
	return validateFilter(f)
}

func matches(doc Document, f Filter) bool {
	for key, want := range f {
		got, ok := doc[key]
		if !ok || !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

// jsonEqual compares two values by their JSON encoding, so 3 and 3.0 match
// the way they do in the SQL backends.
func jsonEqual(a, b any) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(left, right)
}

var _ Store = (*Memory)(nil)
