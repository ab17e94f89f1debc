// Package ingest builds the product vector index offline. For each product
// folder it parses the info file, embeds the description once and each
// image once, duplicates the product metadata onto every vector, and
// upserts the batch under deterministic IDs so a re-run replaces rather
// than accumulates.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fashion-search/internal/domain"
)

const infoFileName = "info.txt"

// Pipeline embeds and indexes product folders.
type Pipeline struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	batchSize int
	workers   int
}

// New creates an ingestion pipeline. workers bounds concurrent embedding
// calls per product; batchSize bounds points per upsert request.
func New(embedder domain.Embedder, index domain.VectorIndex, batchSize, workers int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{embedder: embedder, index: index, batchSize: batchSize, workers: workers}
}

// Run ingests every product subfolder of baseFolder. Folders that fail to
// embed are skipped with a logged error; one bad product does not abort
// the run. Returns the number of vectors written.
func (p *Pipeline) Run(ctx context.Context, baseFolder string) (int, error) {
	entries, err := os.ReadDir(baseFolder)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", baseFolder, err)
	}

	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, filepath.Join(baseFolder, e.Name()))
		}
	}
	log.Info().Int("folders", len(folders)).Str("base", baseFolder).Msg("found product folders")

	total := 0
	var batch []domain.AssetVector
	for _, folder := range folders {
		assets, err := p.ProductVectors(ctx, folder)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			log.Error().Err(err).Str("folder", folder).Msg("skipping product")
			continue
		}
		// Replace-on-reingest: stale assets (e.g. a removed image) would
		// otherwise survive under their old IDs.
		if err := p.index.DeleteFolder(ctx, filepath.Base(folder)); err != nil {
			return total, fmt.Errorf("clearing folder %s: %w", folder, err)
		}
		batch = append(batch, assets...)
		for len(batch) >= p.batchSize {
			if err := p.index.Upsert(ctx, batch[:p.batchSize]); err != nil {
				return total, fmt.Errorf("upserting batch: %w", err)
			}
			total += p.batchSize
			batch = batch[p.batchSize:]
			log.Info().Int("total", total).Msg("upserted batch")
		}
	}
	if len(batch) > 0 {
		if err := p.index.Upsert(ctx, batch); err != nil {
			return total, fmt.Errorf("upserting final batch: %w", err)
		}
		total += len(batch)
	}
	log.Info().Int("vectors", total).Msg("ingestion complete")
	return total, nil
}

// ProductVectors parses and embeds one product folder without touching the
// index. Every vector carries the product's full metadata so that any
// single search hit can supply price and description at grouping time.
func (p *Pipeline) ProductVectors(ctx context.Context, folder string) ([]domain.AssetVector, error) {
	folderName := filepath.Base(folder)

	info := ProductInfo{ID: folderName}
	infoPath := filepath.Join(folder, infoFileName)
	if _, err := os.Stat(infoPath); err == nil {
		info, err = parseInfoFile(infoPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", infoPath, err)
		}
	} else {
		log.Warn().Str("folder", folderName).Msg("no info file found")
	}
	if info.ID == "" {
		info.ID = folderName
	}
	price := info.Price

	base := domain.AssetVector{
		ProductID:   info.ID,
		Folder:      folderName,
		Description: info.Description,
		Category:    info.Category,
		Color:       info.Color,
		Price:       &price,
	}

	images, err := listImages(folder)
	if err != nil {
		return nil, err
	}

	assets := make([]domain.AssetVector, 0, len(images)+1)
	if info.Description != "" {
		vec, err := p.embedder.EmbedText(ctx, info.Description)
		if err != nil {
			return nil, fmt.Errorf("embedding description: %w", err)
		}
		a := base
		a.ID = assetID(folderName, "text")
		a.Kind = domain.AssetText
		a.Vector = vec
		assets = append(assets, a)
	}

	imageAssets := make([]domain.AssetVector, len(images))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, img := range images {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(folder, img))
			if err != nil {
				return err
			}
			vec, err := p.embedder.EmbedImage(gctx, data)
			if err != nil {
				return fmt.Errorf("embedding %s: %w", img, err)
			}
			a := base
			a.ID = assetID(folderName, img)
			a.Kind = domain.AssetImage
			a.ImageFilename = img
			a.Vector = vec
			mu.Lock()
			imageAssets[i] = a
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(assets, imageAssets...), nil
}

// Preview parses every product folder under baseFolder without embedding
// or writing anything. Used by the ingest binary's dry-run mode.
func Preview(baseFolder string) (map[string]ProductInfo, error) {
	entries, err := os.ReadDir(baseFolder)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", baseFolder, err)
	}
	out := make(map[string]ProductInfo)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info := ProductInfo{ID: e.Name()}
		infoPath := filepath.Join(baseFolder, e.Name(), infoFileName)
		if _, err := os.Stat(infoPath); err == nil {
			if parsed, err := parseInfoFile(infoPath); err == nil {
				info = parsed
				if info.ID == "" {
					info.ID = e.Name()
				}
			}
		}
		out[e.Name()] = info
	}
	return out, nil
}

// assetID derives a stable point ID from folder + asset identity, which is
// what makes upserts idempotent across ingestion runs.
func assetID(folder, asset string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fashion-search/"+folder+"/"+asset)).String()
}

func listImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", folder, err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			images = append(images, e.Name())
		}
	}
	return images, nil
}
