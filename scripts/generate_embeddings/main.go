// Backfills embeddings for candidates the ingestion pipeline inserted without
// one. Safe to re-run: it only touches rows where embedding IS NULL.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	database "github.com/tripweaver/tripweaver/app/db"
	"github.com/tripweaver/tripweaver/config"
	generativeAI "github.com/tripweaver/tripweaver/internal/api/generative_ai"
	"github.com/tripweaver/tripweaver/internal/api/retrieval"
)

var batchSize = flag.Int("batch", 20, "number of candidates to process per batch")

func main() {
	flag.Parse()
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		log.Fatalf("Failed to generate database config: %v", err)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Connected to database successfully")

	embeddingService, err := generativeAI.NewEmbeddingService(ctx, cfg.GenerativeAI.EmbeddingModel, logger)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}

	repo := retrieval.NewRepository(pool, logger)

	logger.Info("Starting embedding backfill for candidates...")

	totalProcessed := 0
	totalErrors := 0
	for {
		candidates, err := repo.CandidatesWithoutEmbeddings(ctx, *batchSize)
		if err != nil {
			log.Fatalf("Failed to fetch candidates without embeddings: %v", err)
		}
		if len(candidates) == 0 {
			break
		}

		logger.Info("Processing batch of candidates", slog.Int("batch_size", len(candidates)))

		for _, candidate := range candidates {
			text := retrieval.BuildCandidateEmbeddingText(candidate)
			embedding, err := embeddingService.GenerateQueryEmbedding(ctx, text)
			if err != nil {
				logger.Error("Failed to generate embedding for candidate",
					slog.Any("error", err),
					slog.String("candidate_id", candidate.ID.String()),
					slog.String("candidate_name", candidate.Name))
				totalErrors++
				continue
			}

			if err := repo.UpdateCandidateEmbedding(ctx, candidate.ID, embedding); err != nil {
				logger.Error("Failed to store candidate embedding",
					slog.Any("error", err),
					slog.String("candidate_id", candidate.ID.String()),
					slog.String("candidate_name", candidate.Name))
				totalErrors++
				continue
			}
			totalProcessed++
		}

		if len(candidates) < *batchSize {
			break
		}
	}

	logger.Info("Embedding backfill completed",
		slog.Int("total_processed", totalProcessed),
		slog.Int("total_errors", totalErrors))
	if totalErrors > 0 {
		os.Exit(1)
	}
}
