package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripweaver/tripweaver/internal/types"
)

// Repository reads ranked candidates from the vector store.
type Repository interface {
	SimilarCandidates(ctx context.Context, queryEmbedding []float32, filter types.CandidateFilter) ([]types.ScoredCandidate, error)
}

// BackfillRepository is the extra surface the embedding backfill script uses.
type BackfillRepository interface {
	CandidatesWithoutEmbeddings(ctx context.Context, limit int) ([]types.Candidate, error)
	UpdateCandidateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

// PGXQuerier is the slice of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PGXQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ Repository         = (*RepositoryImpl)(nil)
	_ BackfillRepository = (*RepositoryImpl)(nil)
)

type RepositoryImpl struct {
	pgpool PGXQuerier
	logger *slog.Logger
}

func NewRepository(pgpool PGXQuerier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{pgpool: pgpool, logger: logger}
}

// SimilarCandidates runs a cosine similarity search constrained by the filter.
// Results are sorted by similarity descending; an empty slice (not an error)
// comes back when nothing clears the threshold.
func (r *RepositoryImpl) SimilarCandidates(ctx context.Context, queryEmbedding []float32, filter types.CandidateFilter) ([]types.ScoredCandidate, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "SimilarCandidates", trace.WithAttributes(
		attribute.Int("embedding.dimension", len(queryEmbedding)),
		attribute.String("filter.city", filter.City),
		attribute.Int("filter.limit", filter.Limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SimilarCandidates"))

	embeddingStr := vectorLiteral(queryEmbedding)

	query := `
        SELECT
            id,
            name,
            category,
            city,
            district,
            address,
            description,
            features,
            latitude,
            longitude,
            rating,
            rating_count,
            1 - (embedding <=> $1::vector) AS similarity
        FROM candidates
        WHERE embedding IS NOT NULL`

	args := []any{embeddingStr}
	argIdx := 2

	if filter.City != "" {
		query += fmt.Sprintf(" AND city = $%d", argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.ExcludeCategory != "" {
		query += fmt.Sprintf(" AND category <> $%d", argIdx)
		args = append(args, string(filter.ExcludeCategory))
		argIdx++
	}
	if filter.Threshold > 0 {
		query += fmt.Sprintf(" AND 1 - (embedding <=> $1::vector) >= $%d", argIdx)
		args = append(args, filter.Threshold)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY embedding <=> $1::vector LIMIT $%d", argIdx)
	args = append(args, filter.Limit)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query similar candidates", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to search similar candidates: %w", err)
	}
	defer rows.Close()

	var results []types.ScoredCandidate
	for rows.Next() {
		var c types.ScoredCandidate
		var district, address, description sql.NullString
		var rating sql.NullFloat64
		var ratingCount sql.NullInt64

		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Category,
			&c.City,
			&district,
			&address,
			&description,
			&c.Features,
			&c.Coordinates.Latitude,
			&c.Coordinates.Longitude,
			&rating,
			&ratingCount,
			&c.Similarity,
		)
		if err != nil {
			l.ErrorContext(ctx, "Failed to scan candidate row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}

		if district.Valid {
			c.District = district.String
		}
		if address.Valid {
			c.Address = address.String
		}
		if description.Valid {
			c.Description = description.String
		}
		if rating.Valid {
			v := rating.Float64
			c.Rating = &v
		}
		if ratingCount.Valid {
			v := int(ratingCount.Int64)
			c.RatingCount = &v
		}

		results = append(results, c)
	}

	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating candidate rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "Similar candidates found")
	return results, nil
}

// vectorLiteral serializes an embedding into the pgvector text format.
func vectorLiteral(embedding []float32) string {
	strs := make([]string, len(embedding))
	for i, v := range embedding {
		strs[i] = fmt.Sprintf("%f", v)
	}
	return "[" + strings.Join(strs, ",") + "]"
}

// CandidatesWithoutEmbeddings returns a batch of candidates still waiting for
// an embedding, for the backfill script.
func (r *RepositoryImpl) CandidatesWithoutEmbeddings(ctx context.Context, limit int) ([]types.Candidate, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "CandidatesWithoutEmbeddings")
	defer span.End()

	query := `
        SELECT id, name, category, city, district, address, description,
               features, latitude, longitude, rating, rating_count
        FROM candidates
        WHERE embedding IS NULL
        ORDER BY created_at
        LIMIT $1`

	rows, err := r.pgpool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to query candidates without embeddings: %w", err)
	}
	defer rows.Close()

	var results []types.Candidate
	for rows.Next() {
		var c types.Candidate
		var district, address, description sql.NullString
		var rating sql.NullFloat64
		var ratingCount sql.NullInt64

		err := rows.Scan(
			&c.ID, &c.Name, &c.Category, &c.City,
			&district, &address, &description,
			&c.Features, &c.Coordinates.Latitude, &c.Coordinates.Longitude,
			&rating, &ratingCount,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}

		if district.Valid {
			c.District = district.String
		}
		if address.Valid {
			c.Address = address.String
		}
		if description.Valid {
			c.Description = description.String
		}
		if rating.Valid {
			v := rating.Float64
			c.Rating = &v
		}
		if ratingCount.Valid {
			v := int(ratingCount.Int64)
			c.RatingCount = &v
		}
		results = append(results, c)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "Candidates without embeddings fetched")
	return results, nil
}

// UpdateCandidateEmbedding stores a freshly generated embedding.
func (r *RepositoryImpl) UpdateCandidateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	ctx, span := otel.Tracer("Repository").Start(ctx, "UpdateCandidateEmbedding", trace.WithAttributes(
		attribute.String("candidate.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE candidates SET embedding = $1::vector, updated_at = now() WHERE id = $2`,
		vectorLiteral(embedding), id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return fmt.Errorf("failed to update candidate embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s not found", id)
	}
	span.SetStatus(codes.Ok, "Embedding updated")
	return nil
}

// BuildCandidateEmbeddingText assembles the text a candidate's embedding is
// generated from. Must stay aligned with whatever the ingestion pipeline
// embeds, otherwise similarity scores drift.
func BuildCandidateEmbeddingText(c types.Candidate) string {
	parts := []string{c.Name, string(c.Category), c.City}
	if c.District != "" {
		parts = append(parts, c.District)
	}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	parts = append(parts, c.Features...)
	return strings.Join(parts, " ")
}
