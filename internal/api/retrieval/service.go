package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripweaver/tripweaver/internal/types"
)

// Embedder turns query text into the 768-dim vector the store is indexed on.
type Embedder interface {
	GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Policy holds the retrieval tuning knobs. The quota multipliers and the food
// threshold relaxation are empirically chosen contract surface, overridable
// through config rather than buried in call sites.
type Policy struct {
	SimilarityThreshold float64
	FoodThresholdFactor float64
	AttractionsPerDay   int
	RestaurantsPerDay   int
	MaxDayRadiusKm      float64
	MinPerDay           int
}

func DefaultPolicy() Policy {
	return Policy{
		SimilarityThreshold: 0.5,
		FoodThresholdFactor: 0.8,
		AttractionsPerDay:   8,
		RestaurantsPerDay:   4,
		MaxDayRadiusKm:      15,
		MinPerDay:           3,
	}
}

const defaultSemanticQuery = "台灣旅遊 熱門景點 在地美食"

// Service is the business logic contract for candidate retrieval.
type Service interface {
	Search(ctx context.Context, queryText string, filter types.Filter, limit int, threshold float64) ([]types.ScoredCandidate, error)
	Retrieve(ctx context.Context, params types.RetrieveParams) (*types.RetrievalResult, error)
	FormatBriefing(result *types.RetrievalResult, days int) string
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	repo     Repository
	embedder Embedder
	policy   Policy
	logger   *slog.Logger
}

func NewServiceImpl(repo Repository, embedder Embedder, policy Policy, logger *slog.Logger) *ServiceImpl {
	if policy.AttractionsPerDay <= 0 {
		policy.AttractionsPerDay = DefaultPolicy().AttractionsPerDay
	}
	if policy.RestaurantsPerDay <= 0 {
		policy.RestaurantsPerDay = DefaultPolicy().RestaurantsPerDay
	}
	if policy.FoodThresholdFactor <= 0 {
		policy.FoodThresholdFactor = DefaultPolicy().FoodThresholdFactor
	}
	return &ServiceImpl{
		repo:     repo,
		embedder: embedder,
		policy:   policy,
		logger:   logger,
	}
}

func (s *ServiceImpl) Policy() Policy { return s.policy }

// BuildSemanticQuery deterministically concatenates the non-empty request
// fields into the text that gets embedded. Empty params yield a fixed default,
// never an empty string.
func BuildSemanticQuery(params types.RetrieveParams) string {
	var parts []string
	if params.Days > 0 {
		parts = append(parts, fmt.Sprintf("%d天行程", params.Days))
	}
	if params.TripType != "" {
		parts = append(parts, params.TripType)
	}
	for _, p := range params.Preferences {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if params.Location != "" {
		parts = append(parts, params.Location)
	}
	if params.SpecialRequirements != "" {
		parts = append(parts, params.SpecialRequirements)
	}
	if len(parts) == 0 {
		return defaultSemanticQuery
	}
	return strings.Join(parts, " ")
}

// Search embeds the query text and runs one filtered similarity search.
func (s *ServiceImpl) Search(ctx context.Context, queryText string, filter types.Filter, limit int, threshold float64) ([]types.ScoredCandidate, error) {
	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("filter.city", filter.City),
		attribute.Int("limit", limit),
	))
	defer span.End()

	embedding, err := s.embedder.GenerateQueryEmbedding(ctx, queryText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidateFilter := types.CandidateFilter{
		City:      filter.City,
		Category:  types.Category(filter.Category),
		Threshold: threshold,
		Limit:     limit,
	}
	results, err := s.repo.SimilarCandidates(ctx, embedding, candidateFilter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Similarity search failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Search completed")
	return results, nil
}

// Retrieve issues the two independent searches that feed itinerary synthesis:
// attractions with the food category excluded at the full threshold, and food
// only at the relaxed threshold (food embeddings are sparser). Quotas scale
// with trip length.
func (s *ServiceImpl) Retrieve(ctx context.Context, params types.RetrieveParams) (*types.RetrievalResult, error) {
	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "Retrieve")
	defer span.End()

	days := params.Days
	if days < 1 {
		days = 1
	}

	filters := NormalizeFilters(params.Location)
	queryText := BuildSemanticQuery(params)

	embedding, err := s.embedder.GenerateQueryEmbedding(ctx, queryText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	attractions, err := s.repo.SimilarCandidates(ctx, embedding, types.CandidateFilter{
		City:            filters.City,
		ExcludeCategory: types.CategoryFood,
		Threshold:       s.policy.SimilarityThreshold,
		Limit:           days * s.policy.AttractionsPerDay,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Attraction search failed")
		return nil, fmt.Errorf("attraction retrieval failed: %w", err)
	}

	restaurants, err := s.repo.SimilarCandidates(ctx, embedding, types.CandidateFilter{
		City:      filters.City,
		Category:  types.CategoryFood,
		Threshold: s.policy.SimilarityThreshold * s.policy.FoodThresholdFactor,
		Limit:     days * s.policy.RestaurantsPerDay,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Food search failed")
		return nil, fmt.Errorf("food retrieval failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Candidates retrieved",
		slog.Int("attractions", len(attractions)),
		slog.Int("restaurants", len(restaurants)),
		slog.String("city", filters.City))
	span.SetAttributes(
		attribute.Int("attractions.count", len(attractions)),
		attribute.Int("restaurants.count", len(restaurants)),
	)
	span.SetStatus(codes.Ok, "Retrieval completed")

	return &types.RetrievalResult{
		Attractions: attractions,
		Restaurants: restaurants,
		Filters:     filters,
	}, nil
}
