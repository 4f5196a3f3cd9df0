package repo

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryDocuments is an in-process remote store, used when no remote database
// is configured.
type MemoryDocuments struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string]map[string][]byte)}
}

func (m *MemoryDocuments) Set(ctx context.Context, ownerID string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[ownerID] == nil {
		m.docs[ownerID] = make(map[string][]byte)
	}
	m.docs[ownerID][doc.ID] = slices.Clone(doc.Body)
	return nil
}

func (m *MemoryDocuments) GetAll(ctx context.Context, ownerID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs[ownerID]))
	for id, body := range m.docs[ownerID] {
		docs = append(docs, Document{ID: id, Body: slices.Clone(body)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MemoryDocuments) Delete(ctx context.Context, ownerID, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[ownerID], docID)
	return nil
}
