package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	ImageFolder string `yaml:"image_folder"`
}

// LLMConfig configures the reasoning service adapter. The API key is read
// from the environment variable named by KeyEnv, never from the file.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	KeyEnv      string `yaml:"key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Key resolves the API key from the environment.
func (c *LLMConfig) Key() string { return os.Getenv(c.KeyEnv) }

// EmbedderConfig configures the cross-modal embedding endpoint.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxInflight int    `yaml:"max_inflight"`
	Dimension   int    `yaml:"dimension"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChromemConfig configures the embedded local vector index.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// PostgresConfig configures the pgvector-backed index.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	PasswordEnv string `yaml:"password_env"`
	Debug       bool   `yaml:"debug"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Type     string          `yaml:"type"` // qdrant | chromem | postgres | memory
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float32 `yaml:"min_score"`
}

// IngestConfig configures the offline ingestion run.
type IngestConfig struct {
	BaseFolder string `yaml:"base_folder"`
	BatchSize  int    `yaml:"batch_size"`
	Workers    int    `yaml:"workers"`
}

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// Load reads a config file and applies defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.KeyEnv == "" {
		cfg.LLM.KeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "google/gemini-2.5-flash"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "http://localhost:8100"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.MaxInflight == 0 {
		cfg.Embedder.MaxInflight = 4
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 768
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "qdrant"
	}
	if cfg.Index.Type == "qdrant" {
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		if cfg.Index.Qdrant.URL == "" {
			cfg.Index.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "products_siglip"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Index.Type == "chromem" {
		if cfg.Index.Chromem == nil {
			cfg.Index.Chromem = &ChromemConfig{}
		}
		if cfg.Index.Chromem.Path == "" {
			cfg.Index.Chromem.Path = "./chromemdb"
		}
		if cfg.Index.Chromem.Collection == "" {
			cfg.Index.Chromem.Collection = "products_siglip"
		}
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Search.MinScore == 0 {
		cfg.Search.MinScore = 0.3
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
}
