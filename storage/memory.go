package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var errClosed = errors.New("store closed")

// MemoryStore is an in-process Store for tests and single-node development.
// Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	sets   map[string]map[string]struct{}
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, unavailable("get", errClosed)
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	return m.Apply(ctx, SetOp(key, value))
}

func (m *MemoryStore) AddToSet(ctx context.Context, key, member string) error {
	return m.Apply(ctx, AddToSetOp(key, member))
}

func (m *MemoryStore) ListSet(ctx context.Context, key string) ([]string, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("list set", errClosed)
	}
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *MemoryStore) Apply(ctx context.Context, ops ...Op) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("apply", errClosed)
	}
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			m.values[op.Key] = op.Value
		case OpAddToSet:
			set, ok := m.sets[op.Key]
			if !ok {
				set = make(map[string]struct{})
				m.sets[op.Key] = set
			}
			set[op.Value] = struct{}{}
		}
	}
	return nil
}

func (m *MemoryStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("scan", errClosed)
	}
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return unavailable("ping", errClosed)
	}
	return nil
}

// Close marks the store unusable; later calls fail with ErrUnavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
