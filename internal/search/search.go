// Package search runs one similarity search: embedding, filtered vector
// query, grouping into per-product results.
package search

import (
	"context"

	"github.com/rs/zerolog/log"

	"fashion-search/internal/domain"
)

// Query is one search invocation. When an image is attached, its embedding
// drives the search and the text acts only as a filter signal through the
// extracted params; the two modalities are never embedded and merged.
type Query struct {
	Text   string
	Image  []byte
	Filter domain.SearchFilter
	TopK   int
}

// Orchestrator sequences embed -> filtered vector query -> group.
type Orchestrator struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	minScore float32
}

// NewOrchestrator creates a search orchestrator. minScore is the
// post-retrieval cutoff below which hits are dropped even inside topK.
func NewOrchestrator(embedder domain.Embedder, index domain.VectorIndex, minScore float32) *Orchestrator {
	return &Orchestrator{embedder: embedder, index: index, minScore: minScore}
}

// Search returns up to TopK grouped products ordered by descending score.
// Nothing clearing the score cutoff is an empty slice, not an error.
func (o *Orchestrator) Search(ctx context.Context, q Query) ([]domain.GroupedProduct, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	var vector []float32
	var err error
	if len(q.Image) > 0 {
		vector, err = o.embedder.EmbedImage(ctx, q.Image)
	} else {
		vector, err = o.embedder.EmbedText(ctx, q.Text)
	}
	if err != nil {
		return nil, err
	}

	// Fetch extra candidates: grouping collapses same-folder hits, so topK
	// raw hits can yield fewer than topK products.
	hits, err := o.index.Search(ctx, vector, q.Filter, topK*2)
	if err != nil {
		return nil, &domain.IndexUnavailableError{Err: err}
	}

	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= o.minScore {
			kept = append(kept, h)
		}
	}
	if len(kept) < len(hits) {
		log.Debug().
			Int("retrieved", len(hits)).
			Int("kept", len(kept)).
			Float32("min_score", o.minScore).
			Msg("dropped hits below score cutoff")
	}

	products := group(kept)
	if len(products) > topK {
		products = products[:topK]
	}
	return products, nil
}
