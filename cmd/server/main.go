package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fashion-search/internal/config"
	"fashion-search/internal/embedding"
	"fashion-search/internal/pipeline"
	"fashion-search/internal/reasoner"
	"fashion-search/internal/search"
	"fashion-search/internal/server"
	"fashion-search/internal/vectorindex"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index, err := vectorindex.New(cfg.Index)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector index")
	}
	if err := index.Init(ctx, cfg.Embedder.Dimension); err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector index")
	}
	// Fail fast here instead of retrying per request.
	if err := index.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Vector index unreachable")
	}

	embedder := embedding.NewClient(embedding.Config{
		BaseURL:     cfg.Embedder.BaseURL,
		Timeout:     time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		MaxInflight: cfg.Embedder.MaxInflight,
	})

	llm, err := reasoner.New(reasoner.Config{
		BaseURL: cfg.LLM.BaseURL,
		Key:     cfg.LLM.Key(),
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing reasoning client")
	}

	searcher := search.NewOrchestrator(embedder, index, cfg.Search.MinScore)
	pipe := pipeline.New(llm, searcher, cfg.Search.TopK)

	srv := server.New(pipe, index, cfg.Server.Addr, cfg.Server.ImageFolder)
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
