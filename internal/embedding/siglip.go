// Package embedding talks to a SigLIP serving endpoint that embeds text
// and images into one shared latent space. Query-time and ingestion-time
// vectors come from the same model with the same L2 normalization, which
// is what makes text/image cosine scores comparable at all.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"fashion-search/internal/domain"
)

// Client is a REST client to the embedding server. A weighted semaphore
// bounds in-flight calls: the backing model is compute-bound, and unbounded
// concurrent invocation exhausts it long before the HTTP layer pushes back.
type Client struct {
	baseURL string
	client  *http.Client
	sem     *semaphore.Weighted
}

// Config for the embedding client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxInflight int
}

// NewClient creates an embedding client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	inflight := cfg.MaxInflight
	if inflight <= 0 {
		inflight = 4
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		sem:     semaphore.NewWeighted(int64(inflight)),
	}
}

type embedRequest struct {
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedText returns the normalized vector for a text query.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "/embed/text", embedRequest{Text: text})
}

// EmbedImage returns the normalized vector for raw image bytes.
func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return c.embed(ctx, "/embed/image", embedRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	})
}

func (c *Client) embed(ctx context.Context, path string, body embedRequest) ([]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	defer c.sem.Release(1)

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.EmbeddingError{Err: fmt.Errorf("POST %s: %s: %s", path, resp.Status, msg)}
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	if len(out.Embedding) == 0 {
		return nil, &domain.EmbeddingError{Err: fmt.Errorf("empty embedding from %s", path)}
	}
	return out.Embedding, nil
}
