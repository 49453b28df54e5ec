package internal

import (
	"context"
	"fmt"
	"sync"
)

// KVStore persists opaque values under string keys
type KVStore interface {
	// Get returns the value for key; found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
	Name() string
}

// MemoryKV keeps values in process memory
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }

func (m *MemoryKV) Name() string { return "memory" }

// OpenKV opens the backend selected by cfg.Store
func OpenKV(ctx context.Context, cfg Config) (KVStore, error) {
	switch cfg.Store {
	case "sqlite", "":
		return OpenSQLiteKV(cfg.StorePath)
	case "redis":
		return NewRedisKV(ctx, cfg.RedisURL)
	case "memory":
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unsupported store: %s (supported: sqlite, redis, memory)", cfg.Store)
	}
}
