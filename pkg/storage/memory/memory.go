// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goclaw/holomem/pkg/storage"
)

// MemoryStorage implements the Store interface using an in-memory map.
// Records do not survive process exit.
type MemoryStorage struct {
	mu       sync.RWMutex
	records  map[string][]byte
	writeErr error
	writes   int
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string][]byte),
	}
}

// FailWrites makes every subsequent Put and Delete fail with err until it is
// called again with nil.
func (m *MemoryStorage) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns the number of successful Put calls.
func (m *MemoryStorage) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Put stores a copy of value under key.
func (m *MemoryStorage) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return &storage.InvalidKeyError{Key: key}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return &storage.WriteError{Key: key, Cause: m.writeErr}
	}
	// Copy to avoid external modifications
	m.records[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

// Get retrieves a copy of the record under key.
func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.records[key]
	if !exists {
		return nil, &storage.NotFoundError{Key: key}
	}
	return append([]byte(nil), v...), nil
}

// Delete removes the record under key.
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return &storage.WriteError{Key: key, Cause: m.writeErr}
	}
	delete(m.records, key)
	return nil
}

// Keys lists every key with the given prefix in lexical order.
func (m *MemoryStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for in-memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
