package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/llmify/llmstxt-service/common/config"
	"github.com/llmify/llmstxt-service/common/contentstore"
	"github.com/llmify/llmstxt-service/common/db"
	"github.com/llmify/llmstxt-service/common/extractor"
	"github.com/llmify/llmstxt-service/common/generator"
	"github.com/llmify/llmstxt-service/common/llm"
	"github.com/llmify/llmstxt-service/common/logger"
	"github.com/llmify/llmstxt-service/common/messaging"
	"github.com/llmify/llmstxt-service/common/pipeline"
	"github.com/llmify/llmstxt-service/common/queue"
	"github.com/llmify/llmstxt-service/common/storage"
	"github.com/llmify/llmstxt-service/common/summarycache"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const sweepInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment")
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	dbConn, err := db.SetupDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up database")
	}
	defer dbConn.Close()

	logger.InitializeLogging(dbConn)

	broker, err := messaging.SetupNatsBroker(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up NATS")
	}

	providers := make(map[string]llm.Provider)
	for _, name := range llm.ProviderNames() {
		provider, err := llm.NewProvider(name, cfg.LLM)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Provider not configured, skipping")
			continue
		}
		providers[name] = provider
	}
	if len(providers) == 0 {
		log.Fatal().Msg("No LLM provider configured, set ANTHROPIC_API_KEY or GOOGLE_API_KEY")
	}

	resilient := llm.NewResilient(llm.RetryConfigFrom(cfg.LLM))
	summaryCache := summarycache.New(dbConn.Redis, cfg.Pipeline.SummaryCacheTTL)
	contentStore := contentstore.New(dbConn.Queries)
	pageExtractor := extractor.New(cfg.Pipeline.FetchTimeout)

	processor := generator.NewProcessor(
		dbConn.Queries,
		summaryCache,
		contentStore,
		pageExtractor,
		cfg.Pipeline.BatchSize,
		cfg.Pipeline.FailureThreshold,
	)

	if cfg.GCS.Bucket != "" {
		gcs, err := storage.NewGCSStorage(ctx, storage.GCSConfig{
			ProjectID:       cfg.GCS.ProjectID,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			log.Warn().Err(err).Msg("GCS unavailable, artifact upload disabled")
		} else {
			processor.WithArtifacts(storage.NewArtifactStore(gcs, cfg.GCS.Bucket))
		}
	}

	events := queue.NewEvents(0)
	bridge := queue.NewNotifyBridge(broker, events)
	go bridge.Run(ctx)

	jobs := pipeline.NewGenerationJobs(processor, resilient, providers, events, dbConn, cfg.Pipeline)

	registry := queue.NewRegistry()
	for name := range providers {
		queueConfig := queue.ForProvider(name, cfg.Queue)
		q, err := queue.NewQueue(ctx, queueConfig, broker, dbConn.Redis, events)
		if err != nil {
			log.Fatal().Err(err).Str("queue", queueConfig.Name).Msg("Failed to create queue")
		}
		worker, err := queue.NewWorker(q, jobs.Handler(queueConfig.Name))
		if err != nil {
			log.Fatal().Err(err).Str("queue", queueConfig.Name).Msg("Failed to create worker")
		}
		worker.OnExhausted(jobs.Exhausted)
		if err := registry.Register(q, worker); err != nil {
			log.Fatal().Err(err).Str("queue", queueConfig.Name).Msg("Failed to register queue")
		}
	}

	if err := registry.StartAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start workers")
	}

	sweeper := pipeline.NewSweeper(contentStore, sweepInterval, cfg.Pipeline.ContentRetention, cfg.Pipeline.SweepBudget)
	go sweeper.Run(ctx)

	server := NewAppHttpServer(cfg)
	server.SetDB(dbConn)
	server.SetRegistry(registry)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.start()
	}()

	select {
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	registry.Shutdown()
	cancel()
	if err := broker.Close(); err != nil {
		log.Warn().Err(err).Msg("NATS close failed")
	}
	log.Info().Msg("Shutdown complete")
}
