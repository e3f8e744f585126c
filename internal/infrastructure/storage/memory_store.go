package storage

import (
	"context"
	"strconv"
	"sync"

	"LearningCurator/internal/ports"
	"LearningCurator/internal/statusdoc"
)

// MemoryStore holds the document in process memory. Useful for dry setups
// and local experiments; nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	doc     *statusdoc.Document
	version int
}

var _ ports.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore starts from seed, or from an empty document when seed is nil.
func NewMemoryStore(seed *statusdoc.Document) *MemoryStore {
	if seed == nil {
		seed = statusdoc.New()
	}
	return &MemoryStore{doc: seed.Clone()}
}

// Load returns a copy of the current document.
func (m *MemoryStore) Load(context.Context) (*statusdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.doc.Clone()
	doc.Version = strconv.Itoa(m.version)
	return doc, nil
}

// Save stores a copy of doc if no other save happened since it was loaded.
func (m *MemoryStore) Save(_ context.Context, doc *statusdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.Version != strconv.Itoa(m.version) {
		return ports.ErrVersionConflict
	}
	m.doc = doc.Clone()
	m.version++
	return nil
}
