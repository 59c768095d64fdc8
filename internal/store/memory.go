package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/serroba/associates-api/internal/associates"
)

// MemoryStore is an in-memory implementation of associates.Repository.
type MemoryStore struct {
	mu     sync.RWMutex
	exists bool
	fields map[string]json.RawMessage // name -> stored record
}

// NewMemoryStore creates an in-memory document store with no document.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields: make(map[string]json.RawMessage),
	}
}

// Seed stores a raw field as-is, creating the document if needed.
// It is used to load fixtures, including records in the legacy shape.
func (m *MemoryStore) Seed(name string, raw json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exists = true
	m.fields[name] = raw
}

// Raw returns the stored form of a field.
func (m *MemoryStore) Raw(name string) (json.RawMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.fields[name]

	return raw, ok
}

func (m *MemoryStore) Fetch(_ context.Context) (*associates.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.exists {
		return &associates.Snapshot{}, nil
	}

	doc, err := associates.DecodeDocument(m.fields)
	if err != nil {
		return nil, err
	}

	return &associates.Snapshot{Exists: true, Document: doc}, nil
}

func (m *MemoryStore) InitializeEmpty(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exists = true

	return nil
}

func (m *MemoryStore) ApplyFieldPatch(_ context.Context, name string, patch associates.FieldPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.exists {
		return associates.ErrDocumentMissing
	}

	current, present := m.fields[name]

	next, err := patch.Apply(current, present)
	if err != nil {
		return err
	}

	if next == nil {
		delete(m.fields, name)

		return nil
	}

	m.fields[name] = next

	return nil
}

// Compile-time check.
var _ associates.Repository = (*MemoryStore)(nil)
