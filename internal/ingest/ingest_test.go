package ingest

import (
	"context"
	"crypto/sha256"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fashion-search/internal/domain"
	"fashion-search/internal/vectorindex/memory"
)

// hashEmbedder derives a deterministic unit vector from its input, so the
// same text or image bytes always embed identically, like the real model.
type hashEmbedder struct{}

func (hashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return hashVector([]byte("text:" + text)), nil
}

func (hashEmbedder) EmbedImage(_ context.Context, image []byte) ([]float32, error) {
	return hashVector(append([]byte("image:"), image...)), nil
}

func hashVector(data []byte) []float32 {
	sum := sha256.Sum256(data)
	vec := make([]float32, 8)
	var norm float64
	for i := range vec {
		vec[i] = float32(sum[i]) - 128
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func writeProduct(t *testing.T, base, folder, info string, images ...string) {
	t.Helper()
	dir := filepath.Join(base, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if info != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "info.txt"), []byte(info), 0o644))
	}
	for _, img := range images {
		require.NoError(t, os.WriteFile(filepath.Join(dir, img), []byte("fake image "+img), 0o644))
	}
}

func newIndex(t *testing.T) *memory.Index {
	t.Helper()
	idx := memory.New()
	require.NoError(t, idx.Init(context.Background(), 8))
	return idx
}

func TestRunIngestsDescriptionAndImages(t *testing.T) {
	base := t.TempDir()
	writeProduct(t, base, "jacket-01",
		"Description: black bomber jacket\nID: JKT-1\nPrice: 800\n",
		"front.jpg", "back.png")
	idx := newIndex(t)

	total, err := New(hashEmbedder{}, idx, 100, 2).Run(context.Background(), base)

	require.NoError(t, err)
	assert.Equal(t, 3, total) // one text vector + two image vectors
}

func TestRunIsIdempotent(t *testing.T) {
	base := t.TempDir()
	writeProduct(t, base, "jacket-01",
		"Description: black bomber jacket\nID: JKT-1\nPrice: 800\n",
		"front.jpg")
	idx := newIndex(t)
	p := New(hashEmbedder{}, idx, 100, 2)

	_, err := p.Run(context.Background(), base)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), base)
	require.NoError(t, err)

	vec, _ := hashEmbedder{}.EmbedText(context.Background(), "black bomber jacket")
	hits, err := idx.Search(context.Background(), vec, domain.SearchFilter{}, 100)
	require.NoError(t, err)
	assert.Len(t, hits, 2) // still one text + one image vector
}

func TestRoundTripDescriptionQueryFindsProduct(t *testing.T) {
	base := t.TempDir()
	writeProduct(t, base, "jacket-01",
		"Description: black oversize bomber jacket\nID: JKT-1\nPrice: 800\n",
		"front.jpg")
	writeProduct(t, base, "jeans-02",
		"Description: slim blue jeans\nID: JNS-2\nPrice: 450\n",
		"main.jpg")
	idx := newIndex(t)
	_, err := New(hashEmbedder{}, idx, 100, 2).Run(context.Background(), base)
	require.NoError(t, err)

	// Querying with the product's own description embeds to the identical
	// vector, so its text hit scores 1.0 and leads the results.
	vec, _ := hashEmbedder{}.EmbedText(context.Background(), "black oversize bomber jacket")
	hits, err := idx.Search(context.Background(), vec, domain.SearchFilter{}, 10)

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "jacket-01", hits[0].Asset.Folder)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-5)
}

func TestMetadataDuplicatedOntoEveryVector(t *testing.T) {
	base := t.TempDir()
	writeProduct(t, base, "jacket-01",
		"Description: black jacket\nID: JKT-1\nPrice: 800\nCategory: jacket\nColor: black\n",
		"front.jpg")
	p := New(hashEmbedder{}, newIndex(t), 100, 2)

	assets, err := p.ProductVectors(context.Background(), filepath.Join(base, "jacket-01"))

	require.NoError(t, err)
	require.Len(t, assets, 2)
	for _, a := range assets {
		assert.Equal(t, "JKT-1", a.ProductID)
		assert.Equal(t, "jacket-01", a.Folder)
		assert.Equal(t, "black jacket", a.Description)
		assert.Equal(t, "jacket", a.Category)
		assert.Equal(t, "black", a.Color)
		require.NotNil(t, a.Price)
		assert.Equal(t, 800.0, *a.Price)
	}
}

func TestMissingInfoFileFallsBackToFolderName(t *testing.T) {
	base := t.TempDir()
	writeProduct(t, base, "mystery-item", "", "only.jpg")
	p := New(hashEmbedder{}, newIndex(t), 100, 2)

	assets, err := p.ProductVectors(context.Background(), filepath.Join(base, "mystery-item"))

	require.NoError(t, err)
	require.Len(t, assets, 1) // no description, image vector only
	assert.Equal(t, "mystery-item", assets[0].ProductID)
	assert.Equal(t, domain.AssetImage, assets[0].Kind)
}

func TestAssetIDsStableAcrossRuns(t *testing.T) {
	assert.Equal(t, assetID("jacket-01", "front.jpg"), assetID("jacket-01", "front.jpg"))
	assert.NotEqual(t, assetID("jacket-01", "front.jpg"), assetID("jacket-01", "back.jpg"))
	assert.NotEqual(t, assetID("jacket-01", "text"), assetID("jacket-02", "text"))
}

func TestPreviewParsesWithoutEmbedding(t *testing.T) {
	base := t.TempDir()
	writeProduct(t, base, "jacket-01", "Description: black jacket\nID: JKT-1\nPrice: 800\n", "front.jpg")

	infos, err := Preview(base)

	require.NoError(t, err)
	require.Contains(t, infos, "jacket-01")
	assert.Equal(t, "JKT-1", infos["jacket-01"].ID)
	assert.Equal(t, 800.0, infos["jacket-01"].Price)
}
