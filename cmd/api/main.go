package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mchileshe/CourierIQ/internal/analytics"
	"github.com/mchileshe/CourierIQ/internal/cache"
	"github.com/mchileshe/CourierIQ/internal/config"
	"github.com/mchileshe/CourierIQ/internal/database"
	"github.com/mchileshe/CourierIQ/internal/lexicon"
	"github.com/mchileshe/CourierIQ/internal/logging"
	"github.com/mchileshe/CourierIQ/internal/monitoring"
	"github.com/mchileshe/CourierIQ/internal/server"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/mchileshe/CourierIQ/internal/tagger"
	"github.com/mchileshe/CourierIQ/internal/tagging"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Msg("Starting CourierIQ API server")

	// Lexicon consistency check: an issue category without trigger phrases
	// is a programming error and must fail the boot, not a request
	if err := lexicon.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Lexicon consistency check failed")
	}

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Initialize Prometheus metrics
	monitoring.Init()
	log.Info().Msg("Prometheus metrics initialized")

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	// Select the classifier strategy
	classifier, err := tagger.New(cfg.Tagging.Strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create classifier")
	}
	log.Info().Str("strategy", classifier.Name()).Msg("Classifier selected")

	// Analytics report cache; the service runs without it if Redis is down
	var reportCache *analytics.ReportCache
	if cfg.Analytics.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, analytics cache disabled")
		} else {
			defer redisClient.Close()
			reportCache = analytics.NewReportCache(redisClient, cfg.Analytics.CacheTTL)
		}
	}

	reviews := store.NewPostgresStore(db.Pool)
	var invalidator tagging.ReportInvalidator
	if reportCache != nil {
		invalidator = reportCache
	}
	taggingService := tagging.NewService(reviews, classifier, cfg.Tagging.BatchWorkers, invalidator)
	analyticsService := analytics.NewService(reviews, reportCache)

	srv := server.NewAPIServer(cfg, server.Deps{
		DB:        db,
		Reviews:   reviews,
		Tagging:   taggingService,
		Analytics: analyticsService,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
