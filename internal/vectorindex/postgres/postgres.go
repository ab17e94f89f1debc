// Package postgres backs the vector index with Postgres + pgvector.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"fashion-search/internal/domain"
)

type assetRow struct {
	bun.BaseModel `bun:"table:asset_vectors,alias:av"`

	ID            string   `bun:"id,pk"`
	Embedding     string   `bun:"embedding,notnull,type:vector(768)"`
	ProductID     string   `bun:"product_id,notnull"`
	Folder        string   `bun:"folder,notnull"`
	Kind          string   `bun:"kind,notnull"`
	ImageFilename string   `bun:"image_filename"`
	Description   string   `bun:"description"`
	Category      string   `bun:"category"`
	Color         string   `bun:"color"`
	Price         *float64 `bun:"price"`

	Score float32 `bun:"score,scanonly"`
}

// Index stores asset vectors in one pgvector table.
type Index struct {
	db *bun.DB
}

// Connect opens the database and wires the bun instance.
func Connect(dsn, password string, debug bool) *Index {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(password)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Index{db: db}
}

// Close releases the connection pool.
func (s *Index) Close() error { return s.db.Close() }

func (s *Index) Init(ctx context.Context, dimension int) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating pgvector extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*assetRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating asset_vectors table: %w", err)
	}
	return nil
}

func (s *Index) Upsert(ctx context.Context, assets []domain.AssetVector) error {
	if len(assets) == 0 {
		return nil
	}
	rows := make([]assetRow, len(assets))
	for i, a := range assets {
		rows[i] = assetRow{
			ID:            a.ID,
			Embedding:     vectorLiteral(a.Vector),
			ProductID:     a.ProductID,
			Folder:        a.Folder,
			Kind:          string(a.Kind),
			ImageFilename: a.ImageFilename,
			Description:   a.Description,
			Category:      a.Category,
			Color:         a.Color,
			Price:         a.Price,
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("embedding = EXCLUDED.embedding").
		Set("product_id = EXCLUDED.product_id").
		Set("folder = EXCLUDED.folder").
		Set("kind = EXCLUDED.kind").
		Set("image_filename = EXCLUDED.image_filename").
		Set("description = EXCLUDED.description").
		Set("category = EXCLUDED.category").
		Set("color = EXCLUDED.color").
		Set("price = EXCLUDED.price").
		Exec(ctx)
	return err
}

func (s *Index) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	lit := vectorLiteral(vector)

	q := s.db.NewSelect().
		Model(&[]assetRow{}).
		ColumnExpr("av.*").
		ColumnExpr("1 - (av.embedding <=> ?::vector) AS score", lit).
		OrderExpr("av.embedding <=> ?::vector", lit).
		Limit(topK)

	if filter.PriceMin != nil {
		q = q.Where("av.price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		q = q.Where("av.price <= ?", *filter.PriceMax)
	}
	if filter.Category != nil {
		q = q.Where("lower(av.category) = lower(?)", *filter.Category)
	}
	if filter.Color != nil {
		q = q.Where("lower(av.color) = lower(?)", *filter.Color)
	}

	var rows []assetRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, domain.SearchHit{
			Asset: domain.AssetVector{
				ID:            r.ID,
				ProductID:     r.ProductID,
				Folder:        r.Folder,
				Kind:          domain.AssetKind(r.Kind),
				ImageFilename: r.ImageFilename,
				Description:   r.Description,
				Category:      r.Category,
				Color:         r.Color,
				Price:         r.Price,
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *Index) DeleteFolder(ctx context.Context, folder string) error {
	_, err := s.db.NewDelete().Model((*assetRow)(nil)).Where("folder = ?", folder).Exec(ctx)
	return err
}

func (s *Index) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.IndexUnavailableError{Err: err}
	}
	return nil
}

// vectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2]".
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
