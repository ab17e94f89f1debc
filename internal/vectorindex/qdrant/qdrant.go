// Package qdrant is a minimal REST client to a Qdrant collection holding
// the product asset vectors. It assumes cosine distance and creates the
// collection if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fashion-search/internal/domain"
)

// Index talks to one Qdrant collection.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Config for the Qdrant index.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates a Qdrant-backed index.
func New(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection when absent. Qdrant answers 200 for an
// existing collection with the same schema.
func (s *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *Index) Upsert(ctx context.Context, assets []domain.AssetVector) error {
	points := make([]map[string]any, len(assets))
	for i, a := range assets {
		payload := map[string]any{
			"product_id":    a.ProductID,
			"source_folder": a.Folder,
			"type":          string(a.Kind),
		}
		if a.Price != nil {
			payload["price"] = *a.Price
		}
		if a.Description != "" {
			payload["text_content"] = a.Description
		}
		if a.ImageFilename != "" {
			payload["image_filename"] = a.ImageFilename
		}
		if a.Category != "" {
			payload["category"] = a.Category
		}
		if a.Color != "" {
			payload["color"] = a.Color
		}
		points[i] = map[string]any{
			"id":      a.ID,
			"vector":  a.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

func (s *Index) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.SearchHit{
			Asset: assetFromPayload(r.ID, r.Payload),
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *Index) DeleteFolder(ctx context.Context, folder string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_folder", "match": map[string]any{"value": folder}},
			},
		},
	}
	return s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

// Ping checks connectivity so the server can fail fast at startup instead
// of retrying inside the request path.
func (s *Index) Ping(ctx context.Context) error {
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections", s.url), nil, nil); err != nil {
		return &domain.IndexUnavailableError{Err: err}
	}
	return nil
}

// buildFilter renders the conjunctive metadata filter. A point missing a
// filtered-on payload key fails its condition, which gives the
// excluded-not-included-by-default semantics.
func buildFilter(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	if filter.PriceMin != nil || filter.PriceMax != nil {
		r := map[string]any{}
		if filter.PriceMin != nil {
			r["gte"] = *filter.PriceMin
		}
		if filter.PriceMax != nil {
			r["lte"] = *filter.PriceMax
		}
		must = append(must, map[string]any{"key": "price", "range": r})
	}
	if filter.Category != nil {
		must = append(must, map[string]any{"key": "category", "match": map[string]any{"value": *filter.Category}})
	}
	if filter.Color != nil {
		must = append(must, map[string]any{"key": "color", "match": map[string]any{"value": *filter.Color}})
	}
	if must == nil {
		return nil
	}
	return map[string]any{"must": must}
}

func assetFromPayload(id string, payload map[string]any) domain.AssetVector {
	a := domain.AssetVector{ID: id}
	if v, ok := payload["product_id"].(string); ok {
		a.ProductID = v
	}
	if v, ok := payload["source_folder"].(string); ok {
		a.Folder = v
	}
	if v, ok := payload["type"].(string); ok {
		a.Kind = domain.AssetKind(v)
	}
	if v, ok := payload["text_content"].(string); ok {
		a.Description = v
	}
	if v, ok := payload["image_filename"].(string); ok {
		a.ImageFilename = v
	}
	if v, ok := payload["category"].(string); ok {
		a.Category = v
	}
	if v, ok := payload["color"].(string); ok {
		a.Color = v
	}
	if v, ok := payload["price"].(float64); ok {
		a.Price = &v
	}
	return a
}

func (s *Index) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, msg)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
