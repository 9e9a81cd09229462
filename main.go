package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"as24-worker/config"
	"as24-worker/internal/crawler"
	"as24-worker/logger"
	"as24-worker/services/cache"
	"as24-worker/services/publisher"
	"as24-worker/services/sink"
	"as24-worker/services/storage"
	"as24-worker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("markets", len(cfg.Markets)).
		Int("brand_models", len(cfg.BrandModels)).
		Int("years", len(cfg.Years())).
		Msg("Starting batch crawl worker")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Compose the fetch chain and the batch driver
	fetcher := crawler.NewDefaultFetcher(services.Cache)
	fileSink := sink.NewFileSink(cfg.DataDir)

	w := worker.NewWorker(cfg, fetcher, fileSink, services.Publisher,
		services.AggWriter, services.CleanWriter)

	if err := w.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Batch crawl failed")
	}
}

// Services holds all the initialized services
type Services struct {
	Cache       cache.CacheService
	Publisher   publisher.Publisher
	AggWriter   storage.AggregateWriter
	CleanWriter storage.CleanWriter
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.AggWriter != nil {
		s.AggWriter.Close()
	}
	if s.CleanWriter != nil {
		s.CleanWriter.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Page content cache; nil disables the caching fetch layer
	if cfg.CacheEnabled {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	// Optional record publisher
	if cfg.PublishEnabled {
		services.Publisher = publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	aggWriter, err := storage.NewJSONLWriter(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	services.AggWriter = aggWriter

	// Optional typed projection into Postgres
	if cfg.DatabaseURL != "" {
		cleanWriter, err := storage.NewPostgresWriter(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		services.CleanWriter = cleanWriter
		logger.Info("Connected to Postgres")
	}

	return services, nil
}
