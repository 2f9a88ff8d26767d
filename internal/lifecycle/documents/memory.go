// Package documents resolves the externally owned document records the
// lifecycle needs: owner and storage key.
package documents

import (
	"context"
	"sync"

	"signflow/internal/lifecycle/models"
	"signflow/pkg/platform/sentinel"
)

// InMemoryRepository is a document registry for development and tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	docs map[int64]models.Document
}

func NewInMemoryRepository(docs ...models.Document) *InMemoryRepository {
	r := &InMemoryRepository{docs: make(map[int64]models.Document, len(docs))}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

// Put registers or replaces a document.
func (r *InMemoryRepository) Put(doc models.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

func (r *InMemoryRepository) FindDocument(_ context.Context, id int64) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}
