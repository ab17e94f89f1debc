// Package chromem backs the vector index with an embedded chromem-go
// database. Used when no Qdrant server is reachable: the index lives in a
// local directory and needs no external process.
package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	chromemgo "github.com/philippgille/chromem-go"

	"fashion-search/internal/domain"
)

// Index wraps one chromem collection.
type Index struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection
	name       string
}

// New opens (or creates) the persistent database at path. Pass inMemory
// for throwaway indexes.
func New(path, collectionName string, inMemory bool) (*Index, error) {
	var db *chromemgo.DB
	var err error
	if inMemory {
		db = chromemgo.NewDB()
	} else {
		db, err = chromemgo.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db: %w", err)
		}
	}
	return &Index{db: db, name: collectionName}, nil
}

func (m *Index) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	c, err := m.db.GetOrCreateCollection(m.name, nil, nil)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	m.collection = c
	return nil
}

func (m *Index) Upsert(ctx context.Context, assets []domain.AssetVector) error {
	docs := make([]chromemgo.Document, len(assets))
	for i, a := range assets {
		meta := map[string]string{
			"product_id":    a.ProductID,
			"source_folder": a.Folder,
			"type":          string(a.Kind),
		}
		if a.Price != nil {
			meta["price"] = strconv.FormatFloat(*a.Price, 'f', -1, 64)
		}
		if a.ImageFilename != "" {
			meta["image_filename"] = a.ImageFilename
		}
		// chromem metadata matching is exact, so normalize on write.
		if a.Category != "" {
			meta["category"] = strings.ToLower(a.Category)
		}
		if a.Color != "" {
			meta["color"] = strings.ToLower(a.Color)
		}
		docs[i] = chromemgo.Document{
			ID:        a.ID,
			Content:   a.Description,
			Metadata:  meta,
			Embedding: a.Vector,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

func (m *Index) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	where := map[string]string{}
	if filter.Category != nil {
		where["category"] = strings.ToLower(*filter.Category)
	}
	if filter.Color != nil {
		where["color"] = strings.ToLower(*filter.Color)
	}

	// chromem has no range conditions, so over-fetch and filter price here.
	n := topK * 4
	if count := m.collection.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromemgo.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		a := assetFromResult(r)
		if !filter.Matches(a) {
			continue
		}
		hits = append(hits, domain.SearchHit{Asset: a, Score: r.Similarity})
		if len(hits) == topK {
			break
		}
	}
	return hits, nil
}

func (m *Index) DeleteFolder(ctx context.Context, folder string) error {
	err := m.collection.Delete(ctx, map[string]string{"source_folder": folder}, nil)
	if err != nil {
		return fmt.Errorf("deleting folder %q: %w", folder, err)
	}
	return nil
}

func (m *Index) Ping(context.Context) error {
	if m.collection == nil {
		return &domain.IndexUnavailableError{Err: fmt.Errorf("collection %q not initialized", m.name)}
	}
	return nil
}

func assetFromResult(r chromemgo.Result) domain.AssetVector {
	a := domain.AssetVector{
		ID:            r.ID,
		ProductID:     r.Metadata["product_id"],
		Folder:        r.Metadata["source_folder"],
		Kind:          domain.AssetKind(r.Metadata["type"]),
		ImageFilename: r.Metadata["image_filename"],
		Category:      r.Metadata["category"],
		Color:         r.Metadata["color"],
		Description:   r.Content,
	}
	if raw, ok := r.Metadata["price"]; ok {
		if price, err := strconv.ParseFloat(raw, 64); err == nil {
			a.Price = &price
		}
	}
	return a
}
