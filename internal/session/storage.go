package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/brianly1003/aidev/internal/config"
)

// Storage is a small durable key/value store.
type Storage interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Watchable is implemented by storages that can report changes made by
// other processes.
type Watchable interface {
	// Watch calls onChange after the underlying data changed until ctx is
	// done.
	Watch(ctx context.Context, onChange func()) error
}

// OpenStorage opens the backend selected by cfg.
func OpenStorage(cfg config.SessionConfig) (Storage, error) {
	switch cfg.Backend {
	case config.SessionBackendFile, "":
		return NewFileStorage(cfg.Path), nil
	case config.SessionBackendSQLite:
		s, err := OpenSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SessionBackendMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// MemoryStorage keeps values in memory only.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
