// Package memory is a brute-force in-process vector index used by tests
// and local development.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"fashion-search/internal/domain"
)

// Index stores vectors in a slice and scores candidates by dot product
// (vectors are L2-normalized, so this is cosine similarity).
type Index struct {
	mu        sync.RWMutex
	dimension int
	assets    []domain.AssetVector
}

// New creates an empty in-memory index.
func New() *Index { return &Index{} }

func (m *Index) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = dimension
	return nil
}

func (m *Index) Upsert(_ context.Context, assets []domain.AssetVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assets {
		if m.dimension != 0 && len(a.Vector) != m.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, a := range assets {
		replaced := false
		for i := range m.assets {
			if m.assets[i].ID == a.ID {
				m.assets[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			m.assets = append(m.assets, a)
		}
	}
	return nil
}

func (m *Index) Search(_ context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 {
		topK = 10
	}
	hits := make([]domain.SearchHit, 0, len(m.assets))
	for _, a := range m.assets {
		if !filter.Matches(a) {
			continue
		}
		hits = append(hits, domain.SearchHit{Asset: a, Score: dot(a.Vector, vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *Index) DeleteFolder(_ context.Context, folder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.assets[:0]
	for _, a := range m.assets {
		if a.Folder != folder {
			kept = append(kept, a)
		}
	}
	m.assets = kept
	return nil
}

func (m *Index) Ping(context.Context) error { return nil }

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
