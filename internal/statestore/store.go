// Package statestore persists opaque state documents by key.
package statestore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrNotFound indicates that no document is stored under the key.
	ErrNotFound = errors.New("state_store.not_found")
	// ErrEmptyKey indicates a blank key.
	ErrEmptyKey = errors.New("state_store.empty_key")
)

// Store persists state documents.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (store *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	copied := append([]byte(nil), value...)
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.entries[key] = copied
	return nil
}

func (store *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	value, ok := store.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (store *MemoryStore) Delete(_ context.Context, key string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.entries, key)
	return nil
}
