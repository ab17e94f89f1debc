package search

import (
	"sort"

	"fashion-search/internal/domain"
)

// group converts N per-asset hits into M distinct products (M <= N). Pure
// function: stable partition by folder, best hit score per group, the
// top-scoring image hit supplies the representative filename, and the
// first hit carrying price/description supplies them (metadata is
// duplicated across a product's vectors at ingestion, so any hit can).
// Groups come back in non-increasing score order; ties keep the rank of
// each group's best hit.
func group(hits []domain.SearchHit) []domain.GroupedProduct {
	type entry struct {
		product    domain.GroupedProduct
		bestImgScr float32
	}
	order := make([]string, 0, len(hits))
	byFolder := make(map[string]*entry, len(hits))

	for _, hit := range hits {
		a := hit.Asset
		e, ok := byFolder[a.Folder]
		if !ok {
			e = &entry{product: domain.GroupedProduct{
				ID:     a.ProductID,
				Folder: a.Folder,
				Score:  hit.Score,
			}}
			byFolder[a.Folder] = e
			order = append(order, a.Folder)
		}
		if hit.Score > e.product.Score {
			e.product.Score = hit.Score
		}
		if e.product.ID == "" {
			e.product.ID = a.ProductID
		}
		if e.product.Price == nil {
			e.product.Price = a.Price
		}
		if e.product.Description == "" {
			e.product.Description = a.Description
		}
		if a.Kind == domain.AssetImage && a.ImageFilename != "" {
			if e.product.Image == "" || hit.Score > e.bestImgScr {
				e.product.Image = a.ImageFilename
				e.bestImgScr = hit.Score
			}
		}
	}

	products := make([]domain.GroupedProduct, 0, len(order))
	for _, folder := range order {
		products = append(products, byFolder[folder].product)
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Score > products[j].Score
	})
	return products
}
