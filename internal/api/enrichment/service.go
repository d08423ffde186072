// Package enrichment decorates a generated itinerary with live place data and
// travel legs from the maps collaborator. Every lookup is isolated: one failed
// place or route never fails the itinerary, the affected section simply keeps
// less detail.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tripweaver/tripweaver/app/observability/metrics"
	"github.com/tripweaver/tripweaver/internal/api/maps"
	"github.com/tripweaver/tripweaver/internal/types"
)

// wilsonZ is the z-score for a 95% confidence interval.
const wilsonZ = 1.96

// Service enriches itinerary sections in place.
type Service interface {
	EnrichPlaces(ctx context.Context, itinerary *types.TripItinerary, regionHint string) []string
	ComputeLegs(ctx context.Context, itinerary *types.TripItinerary)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	mapsClient  maps.Client
	cache       *cache.Cache
	concurrency int
	logger      *slog.Logger
}

func NewService(mapsClient maps.Client, concurrency int, cacheTTL time.Duration, logger *slog.Logger) *ServiceImpl {
	if concurrency <= 0 {
		concurrency = 5
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &ServiceImpl{
		mapsClient:  mapsClient,
		cache:       cache.New(cacheTTL, 2*cacheTTL),
		concurrency: concurrency,
		logger:      logger,
	}
}

// EnrichPlaces resolves every named section against the maps collaborator and
// attaches ratings, addresses and opening hours. Returns user-facing warnings
// collected along the way (currently: permanently closed places). Sections
// whose lookup fails are left without MapsData.
func (s *ServiceImpl) EnrichPlaces(ctx context.Context, itinerary *types.TripItinerary, regionHint string) []string {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "EnrichPlaces", trace.WithAttributes(
		attribute.Int("sections.count", len(itinerary.Sections)),
	))
	defer span.End()

	var mu sync.Mutex
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range itinerary.Sections {
		section := &itinerary.Sections[i]
		if strings.TrimSpace(section.Location) == "" {
			continue
		}
		g.Go(func() error {
			details, err := s.placeDetails(gctx, section.Location, regionHint)
			if err != nil {
				metrics.Get().EnrichmentFailuresTotal.Add(gctx, 1)
				if !errors.Is(err, maps.ErrPlaceNotFound) {
					s.logger.WarnContext(gctx, "place lookup failed",
						slog.String("location", section.Location), slog.Any("error", err))
				}
				return nil
			}

			section.MapsData = &types.MapsData{
				Rating:       details.Rating,
				Address:      details.Address,
				ReviewCount:  details.ReviewCount,
				WilsonScore:  WilsonScore(details.Rating, details.ReviewCount),
				OpeningHours: details.OpeningHours,
			}
			if details.BusinessStatus == maps.BusinessStatusClosedPermanently {
				section.MapsData.ClosureType = "permanent"
				warning := fmt.Sprintf("「%s」已永久停業，建議替換此行程點", section.Location)
				section.Warning = warning
				mu.Lock()
				warnings = append(warnings, warning)
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return errors; Wait only orders the section writes
	// before the caller reads them.
	_ = g.Wait()

	span.SetAttributes(attribute.Int("warnings.count", len(warnings)))
	span.SetStatus(codes.Ok, "Places enriched")
	return warnings
}

func (s *ServiceImpl) placeDetails(ctx context.Context, name, regionHint string) (*types.PlaceDetails, error) {
	key := regionHint + "|" + name
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*types.PlaceDetails), nil
	}
	details, err := s.mapsClient.PlaceDetails(ctx, name, regionHint)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, details)
	return details, nil
}

// ComputeLegs attaches a travel leg to every pair of adjacent sections on the
// same day whose locations are both named. The leg hangs off the earlier
// section. Failed route lookups leave the pair without a leg.
func (s *ServiceImpl) ComputeLegs(ctx context.Context, itinerary *types.TripItinerary) {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "ComputeLegs")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	legs := 0
	for i := 0; i < len(itinerary.Sections)-1; i++ {
		from := &itinerary.Sections[i]
		to := itinerary.Sections[i+1]
		if from.Day != to.Day {
			continue
		}
		if strings.TrimSpace(from.Location) == "" || strings.TrimSpace(to.Location) == "" {
			continue
		}
		legs++
		g.Go(func() error {
			info, err := s.mapsClient.Route(gctx, from.Location, to.Location)
			if err != nil {
				metrics.Get().EnrichmentFailuresTotal.Add(gctx, 1)
				s.logger.WarnContext(gctx, "route lookup failed",
					slog.String("from", from.Location), slog.String("to", to.Location),
					slog.Any("error", err))
				return nil
			}
			from.TravelInfo = info
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("legs.count", legs))
	span.SetStatus(codes.Ok, "Legs computed")
}

// WilsonScore is the lower bound of the Wilson confidence interval for the
// rating treated as a proportion of the 5-star maximum. It ranks a 4.5 with
// thousands of reviews above a 5.0 with three.
func WilsonScore(rating float64, reviewCount int) float64 {
	if reviewCount <= 0 || rating <= 0 {
		return 0
	}
	p := rating / 5.0
	if p > 1 {
		p = 1
	}
	n := float64(reviewCount)
	z := wilsonZ
	denominator := 1 + z*z/n
	center := p + z*z/(2*n)
	margin := z * math.Sqrt((p*(1-p)+z*z/(4*n))/n)
	return (center - margin) / denominator
}
