// ABOUTME: In-memory vector store for development and tests
// ABOUTME: Brute-force cosine ranking over all stored writings
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/cevr/bible-tools/internal/core"
	"github.com/cevr/bible-tools/internal/models"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	writings map[string]models.Writing
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{writings: make(map[string]models.Writing)}
}

// InsertWritings stores writings, replacing existing ones by ID.
func (s *MemoryStore) InsertWritings(ctx context.Context, writings []models.Writing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writings {
		s.writings[w.ID] = w
	}
	return nil
}

// Search ranks every stored writing by cosine similarity to vector.
// Mismatched dimensions are skipped, not errors.
func (s *MemoryStore) Search(ctx context.Context, vector models.Embedding, limit int) ([]models.Writing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		writing models.Writing
		score   float64
	}
	var results []scored
	for _, w := range s.writings {
		score, err := core.CosineSimilarity(vector, w.Embedding)
		if err != nil {
			continue
		}
		results = append(results, scored{writing: w, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}

	writings := make([]models.Writing, len(results))
	for i, r := range results {
		writings[i] = r.writing
	}
	return writings, nil
}

// WritingContext returns the writing plus its order-adjacent neighbors from
// the same book.
func (s *MemoryStore) WritingContext(ctx context.Context, id string) ([]models.Writing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.writings[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	var context []models.Writing
	for _, other := range s.writings {
		if other.Book == w.Book && (other.Order == w.Order-1 || other.Order == w.Order || other.Order == w.Order+1) {
			context = append(context, other)
		}
	}
	sort.Slice(context, func(i, j int) bool {
		return context[i].Order < context[j].Order
	})
	return context, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
