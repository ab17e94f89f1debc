package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fashion-search/internal/config"
	"fashion-search/internal/embedding"
	"fashion-search/internal/ingest"
	"fashion-search/internal/vectorindex"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	folder := flag.String("folder", "", "Product base folder (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Parse product folders without embedding or writing")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	baseFolder := cfg.Ingest.BaseFolder
	if *folder != "" {
		baseFolder = *folder
	}
	if baseFolder == "" {
		log.Fatal().Msg("Please provide a product folder via -folder or the config file")
	}

	if *dryRun {
		infos, err := ingest.Preview(baseFolder)
		if err != nil {
			log.Fatal().Err(err).Msg("Error scanning product folders")
		}
		pretty, _ := json.MarshalIndent(infos, "", "  ")
		fmt.Println(string(pretty))
		return
	}

	ctx := context.Background()

	index, err := vectorindex.New(cfg.Index)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector index")
	}
	if err := index.Init(ctx, cfg.Embedder.Dimension); err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector index")
	}

	embedder := embedding.NewClient(embedding.Config{
		BaseURL:     cfg.Embedder.BaseURL,
		Timeout:     time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		MaxInflight: cfg.Embedder.MaxInflight,
	})

	pipe := ingest.New(embedder, index, cfg.Ingest.BatchSize, cfg.Ingest.Workers)
	total, err := pipe.Run(ctx, baseFolder)
	if err != nil {
		log.Fatal().Err(err).Int("written", total).Msg("Ingestion failed")
	}
	log.Info().Int("vectors", total).Msg("Done")
}
