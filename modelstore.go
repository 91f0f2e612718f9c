package prefixcode

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ModelStore defines the interface for frequency model persistence.
// This allows models to be kept in memory, on the local filesystem,
// in SQLite, or in S3-compatible object storage.
type ModelStore interface {
	// Get loads the model with the given name.
	Get(ctx context.Context, name string) (FrequencyModel, error)

	// Put stores a model under its metadata name, replacing any
	// existing model with that name.
	Put(ctx context.Context, model FrequencyModel) error

	// Delete removes the named model.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored models in ascending order.
	List(ctx context.Context) ([]string, error)

	// Exists checks if a named model is stored.
	Exists(ctx context.Context, name string) (bool, error)

	// Close releases any resources.
	Close() error
}

// Ensure interfaces are implemented
var (
	_ ModelStore = (*MemoryModelStore)(nil)
	_ ModelStore = (*FileModelStore)(nil)
	_ ModelStore = (*SQLiteModelStore)(nil)
	_ ModelStore = (*S3ModelStore)(nil)
)

// OpenModelStore creates the model store selected by the configuration.
// An empty backend name selects the in-memory store.
func OpenModelStore(cfg StoreConfig) (ModelStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryModelStore(), nil
	case "file":
		return NewFileModelStore(cfg.Dir)
	case "sqlite":
		return NewSQLiteModelStore(cfg.SQLite)
	case "s3":
		return NewS3ModelStore(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown model store backend: %q", cfg.Backend)
	}
}

// MemoryModelStore implements ModelStore using in-memory storage.
// Useful for tests and for embedding a codec without persistence.
type MemoryModelStore struct {
	docs   map[string][]byte
	mu     sync.RWMutex
	closed bool
}

// NewMemoryModelStore creates a new in-memory model store.
func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{
		docs: make(map[string][]byte),
	}
}

func (m *MemoryModelStore) Get(ctx context.Context, name string) (FrequencyModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return FrequencyModel{}, newStoreError("memory", "get", name, ErrStoreClosed)
	}
	doc, ok := m.docs[name]
	if !ok {
		return FrequencyModel{}, newStoreError("memory", "get", name, ErrModelNotFound)
	}
	model, err := ParseModel(doc)
	if err != nil {
		return FrequencyModel{}, newStoreError("memory", "get", name, err)
	}
	return model, nil
}

func (m *MemoryModelStore) Put(ctx context.Context, model FrequencyModel) error {
	if err := model.Validate(); err != nil {
		return newStoreError("memory", "put", model.Metadata.Name, err)
	}
	doc, err := MarshalModel(model)
	if err != nil {
		return newStoreError("memory", "put", model.Metadata.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newStoreError("memory", "put", model.Metadata.Name, ErrStoreClosed)
	}
	m.docs[model.Metadata.Name] = doc
	return nil
}

func (m *MemoryModelStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newStoreError("memory", "delete", name, ErrStoreClosed)
	}
	if _, ok := m.docs[name]; !ok {
		return newStoreError("memory", "delete", name, ErrModelNotFound)
	}
	delete(m.docs, name)
	return nil
}

func (m *MemoryModelStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, newStoreError("memory", "list", "", ErrStoreClosed)
	}
	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryModelStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, newStoreError("memory", "exists", name, ErrStoreClosed)
	}
	_, ok := m.docs[name]
	return ok, nil
}

func (m *MemoryModelStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Size returns the number of stored models.
func (m *MemoryModelStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
