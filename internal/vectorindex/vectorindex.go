// Package vectorindex selects the vector index backend from config.
package vectorindex

import (
	"fmt"
	"os"
	"time"

	"fashion-search/internal/config"
	"fashion-search/internal/domain"
	"fashion-search/internal/vectorindex/chromem"
	"fashion-search/internal/vectorindex/memory"
	"fashion-search/internal/vectorindex/postgres"
	"fashion-search/internal/vectorindex/qdrant"
)

// New builds the configured backend. Qdrant is the production default;
// chromem needs no external process; postgres rides an existing pgvector
// database; memory is for tests and throwaway runs.
func New(cfg config.IndexConfig) (domain.VectorIndex, error) {
	switch cfg.Type {
	case "qdrant":
		return qdrant.New(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "chromem":
		return chromem.New(cfg.Chromem.Path, cfg.Chromem.Collection, false)
	case "postgres":
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres index requires a dsn")
		}
		return postgres.Connect(cfg.Postgres.DSN, os.Getenv(cfg.Postgres.PasswordEnv), cfg.Postgres.Debug), nil
	case "memory":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown index type %q", cfg.Type)
}
