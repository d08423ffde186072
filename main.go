package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/tripweaver/tripweaver/app/db"
	appLogger "github.com/tripweaver/tripweaver/app/logger"
	"github.com/tripweaver/tripweaver/app/observability/metrics"
	"github.com/tripweaver/tripweaver/app/tracer"
	"github.com/tripweaver/tripweaver/config"
	"github.com/tripweaver/tripweaver/internal/api/enrichment"
	generativeAI "github.com/tripweaver/tripweaver/internal/api/generative_ai"
	"github.com/tripweaver/tripweaver/internal/api/itinerary"
	"github.com/tripweaver/tripweaver/internal/api/maps"
	"github.com/tripweaver/tripweaver/internal/api/retrieval"
	"github.com/tripweaver/tripweaver/internal/api/weather"
	"github.com/tripweaver/tripweaver/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability ---
	tracer.InitTracingAndMetrics(":" + cfg.Server.MetricsPort)
	metrics.InitAppMetrics()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations before initializing the main pool.
	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Generative AI clients ---
	aiClient, err := generativeAI.NewAIClient(ctx, cfg.GenerativeAI.Model)
	if err != nil {
		logger.Error("Failed to initialize generative AI client", slog.Any("error", err))
		os.Exit(1)
	}
	embeddingService, err := generativeAI.NewEmbeddingService(ctx, cfg.GenerativeAI.EmbeddingModel, logger)
	if err != nil {
		logger.Error("Failed to initialize embedding service", slog.Any("error", err))
		os.Exit(1)
	}

	// --- External collaborators ---
	mapsClient, err := maps.NewHTTPClient(logger)
	if err != nil {
		logger.Error("Failed to initialize maps client", slog.Any("error", err))
		os.Exit(1)
	}
	weatherClient := weather.NewHTTPClient(logger)

	// --- Dependency Injection ---
	retrievalRepo := retrieval.NewRepository(pool, logger)
	retrievalService := retrieval.NewServiceImpl(retrievalRepo, embeddingService, retrieval.Policy{
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		FoodThresholdFactor: cfg.Retrieval.FoodThresholdFactor,
		AttractionsPerDay:   cfg.Retrieval.AttractionsPerDay,
		RestaurantsPerDay:   cfg.Retrieval.RestaurantsPerDay,
		MaxDayRadiusKm:      cfg.Retrieval.MaxDayRadiusKm,
		MinPerDay:           cfg.Retrieval.MinPerDay,
	}, logger)
	enrichmentService := enrichment.NewService(mapsClient, cfg.Enrichment.Concurrency, cfg.Enrichment.CacheTTL, logger)
	itineraryService := itinerary.NewServiceImpl(aiClient, retrievalService, enrichmentService, weatherClient, logger)
	itineraryHandler := itinerary.NewHandlerImpl(itineraryService, retrievalService, logger)

	// --- Router Setup ---
	mainRouter := router.SetupRouter(&router.Config{
		ItineraryHandler: itineraryHandler,
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:        serverAddress,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: synthesis streams stay open for the whole pipeline.
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
