package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fashion-search/internal/domain"
)

func price(v float64) *float64 { return &v }

func asset(id, folder string, vec []float32, p *float64) domain.AssetVector {
	return domain.AssetVector{
		ID:        id,
		Vector:    vec,
		ProductID: folder + "-id",
		Folder:    folder,
		Kind:      domain.AssetImage,
		Price:     p,
	}
}

func seeded(t *testing.T) *Index {
	t.Helper()
	m := New()
	require.NoError(t, m.Init(context.Background(), 3))
	require.NoError(t, m.Upsert(context.Background(), []domain.AssetVector{
		asset("1", "jacket-01", []float32{1, 0, 0}, price(450)),
		asset("2", "jacket-02", []float32{0.9, 0.1, 0}, price(900)),
		asset("3", "jeans-01", []float32{0, 1, 0}, price(300)),
	}))
	return m
}

func TestSearchOrdersByScore(t *testing.T) {
	m := seeded(t)

	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{}, 10)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "jacket-01", hits[0].Asset.Folder)
	assert.Equal(t, "jacket-02", hits[1].Asset.Folder)
}

func TestPriceFilterExcludes(t *testing.T) {
	m := seeded(t)

	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{PriceMax: price(500)}, 10)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.LessOrEqual(t, *h.Asset.Price, 500.0)
	}
}

func TestContradictoryPriceRangeReturnsEmptyNotError(t *testing.T) {
	m := seeded(t)

	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{
		PriceMin: price(1000),
		PriceMax: price(500),
	}, 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMissingFilteredFieldExcludes(t *testing.T) {
	m := New()
	require.NoError(t, m.Init(context.Background(), 3))
	noPrice := asset("1", "mystery", []float32{1, 0, 0}, nil)
	require.NoError(t, m.Upsert(context.Background(), []domain.AssetVector{noPrice}))

	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{PriceMax: price(500)}, 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCategoryFilterCaseInsensitive(t *testing.T) {
	m := New()
	require.NoError(t, m.Init(context.Background(), 3))
	a := asset("1", "jacket-01", []float32{1, 0, 0}, price(450))
	a.Category = "Jacket"
	require.NoError(t, m.Upsert(context.Background(), []domain.AssetVector{a}))

	cat := "jacket"
	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{Category: &cat}, 10)

	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsertReplacesByID(t *testing.T) {
	m := seeded(t)
	updated := asset("1", "jacket-01", []float32{0, 0, 1}, price(475))
	require.NoError(t, m.Upsert(context.Background(), []domain.AssetVector{updated}))

	hits, err := m.Search(context.Background(), []float32{0, 0, 1}, domain.SearchFilter{}, 1)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].Asset.ID)
	assert.Equal(t, 475.0, *hits[0].Asset.Price)
}

func TestDeleteFolderRemovesAllItsVectors(t *testing.T) {
	m := seeded(t)
	require.NoError(t, m.DeleteFolder(context.Background(), "jacket-01"))

	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{}, 10)

	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "jacket-01", h.Asset.Folder)
	}
}

func TestTopKLimits(t *testing.T) {
	m := seeded(t)

	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, domain.SearchFilter{}, 2)

	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
