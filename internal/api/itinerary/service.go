// Package itinerary orchestrates the synthesis pipeline: intent parsing,
// weather, candidate retrieval, streamed generation, enrichment and stats,
// pushed to the client as a stream of typed events.
package itinerary

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/tripweaver/tripweaver/internal/api/enrichment"
	"github.com/tripweaver/tripweaver/internal/api/retrieval"
	"github.com/tripweaver/tripweaver/internal/api/weather"
	"github.com/tripweaver/tripweaver/internal/types"
)

// AIClient is the slice of the generative client the pipeline needs.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (iter.Seq2[*genai.GenerateContentResponse, error], error)
}

// Service starts synthesis pipelines.
type Service interface {
	SynthesizeTripStream(ctx context.Context, req types.TripRequest) (*types.StreamingResponse, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	aiClient      AIClient
	retrieval     retrieval.Service
	enrichment    enrichment.Service
	weatherClient weather.Client
	logger        *slog.Logger
	now           func() time.Time
}

func NewServiceImpl(
	aiClient AIClient,
	retrievalService retrieval.Service,
	enrichmentService enrichment.Service,
	weatherClient weather.Client,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		aiClient:      aiClient,
		retrieval:     retrievalService,
		enrichment:    enrichmentService,
		weatherClient: weatherClient,
		logger:        logger,
		now:           time.Now,
	}
}

// SynthesizeTripStream kicks off the pipeline for one question and returns the
// event stream. The pipeline runs until done, error or client disconnect; the
// caller must invoke Cancel when it stops consuming.
func (s *ServiceImpl) SynthesizeTripStream(ctx context.Context, req types.TripRequest) (*types.StreamingResponse, error) {
	requestID := uuid.New()
	pipelineCtx, cancel := context.WithCancel(ctx)
	ch := make(chan types.StreamEvent, 16)

	go func() {
		defer close(ch)
		s.run(pipelineCtx, ch, requestID, req)
	}()

	return &types.StreamingResponse{
		RequestID: requestID,
		Stream:    ch,
		Cancel:    cancel,
	}, nil
}

// sendEvent pushes one event, giving up when the request context is cancelled
// or the consumer stalls. A false return means the pipeline should stop.
func (s *ServiceImpl) sendEvent(ctx context.Context, ch chan<- types.StreamEvent, event types.StreamEvent) bool {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Context cancelled, not sending stream event", slog.String("eventType", event.Type))
		return false
	default:
		select {
		case ch <- event:
			return true
		case <-ctx.Done():
			s.logger.WarnContext(ctx, "Context cancelled while sending stream event", slog.String("eventType", event.Type))
			return false
		case <-time.After(2 * time.Second):
			s.logger.WarnContext(ctx, "Dropped stream event, consumer too slow", slog.String("eventType", event.Type))
			return false
		}
	}
}

func (s *ServiceImpl) fail(ctx context.Context, ch chan<- types.StreamEvent, message string, err error) {
	s.logger.ErrorContext(ctx, message, slog.Any("error", err))
	s.sendEvent(ctx, ch, types.StreamEvent{
		Type:    types.EventTypeError,
		Error:   message + ": " + err.Error(),
		IsFinal: true,
	})
}

func (s *ServiceImpl) run(ctx context.Context, ch chan<- types.StreamEvent, requestID uuid.UUID, req types.TripRequest) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "SynthesizeTrip", trace.WithAttributes(
		attribute.String("request.id", requestID.String()),
	))
	defer span.End()

	var warnings []string

	// Phase 1: intent. Parse failures degrade to defaults, never abort.
	if !s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeParsing, Data: "解析需求中"}) {
		return
	}
	intent := s.parseIntent(ctx, req.Question)
	if intent.Warning != "" {
		warnings = append(warnings, intent.Warning)
	}

	dates := resolveDates(s.now(), intent.Days)
	if !s.sendEvent(ctx, ch, types.StreamEvent{
		Type: types.EventTypeParsingResult,
		Data: map[string]any{
			"intent": intent,
			"dates":  formatDates(dates),
		},
	}) {
		return
	}

	// Phase 2: weather, soft.
	forecasts := s.fetchForecasts(ctx, intent, dates)
	weatherPayload := forecastEvent{City: intent.City, Forecasts: forecasts}
	if len(forecasts) == 0 {
		weatherPayload.Warning = "查無天氣資料，行程將不考慮天氣"
		warnings = append(warnings, weatherPayload.Warning)
	}
	if !s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeWeather, Data: weatherPayload}) {
		return
	}

	// Phase 3: retrieval, hard. No candidates means nothing to ground on.
	result, err := s.retrieval.Retrieve(ctx, types.RetrieveParams{
		Location: intent.Location,
		Days:     intent.Days,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Retrieval failed")
		s.fail(ctx, ch, "候選資料檢索失敗", err)
		return
	}

	briefing := s.retrieval.FormatBriefing(result, intent.Days)
	prompt := buildGenerationPrompt(req.Question, intent, briefing, forecasts)
	if !s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeDebugPrompt, Data: prompt}) {
		return
	}

	// Phase 4: generation. Chunks stream out while the full response buffers;
	// parsing happens only on the completed buffer.
	raw, err := s.streamGeneration(ctx, ch, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		s.fail(ctx, ch, "行程生成失敗", err)
		return
	}

	if !s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeParsingResponse, Data: "解析生成結果中"}) {
		return
	}
	itinerary, err := parseItinerary(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary parse failed")
		s.fail(ctx, ch, "生成結果解析失敗", err)
		return
	}

	// Phase 5: enrichment, all soft.
	enrichWarnings := s.enrichment.EnrichPlaces(ctx, itinerary, intent.City)
	warnings = append(warnings, enrichWarnings...)
	s.enrichment.ComputeLegs(ctx, itinerary)
	if !s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeMaps, Data: itinerary}) {
		return
	}

	// Phase 6: stats and final result.
	stats := ComputeStats(itinerary)
	if !s.sendEvent(ctx, ch, types.StreamEvent{
		Type: types.EventTypeResult,
		Data: types.SynthesisResult{
			Itinerary: *itinerary,
			Stats:     stats,
			Filters:   result.Filters,
			Warnings:  warnings,
		},
	}) {
		return
	}

	span.SetStatus(codes.Ok, "Synthesis completed")
	s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeDone, IsFinal: true})
}

func (s *ServiceImpl) fetchForecasts(ctx context.Context, intent types.TripIntent, dates []time.Time) []types.DayForecast {
	city := intent.City
	if city == "" {
		city = intent.Location
	}
	if city == "" || city == defaultLocation {
		return nil
	}
	forecasts, err := s.weatherClient.Forecast(ctx, city, dates)
	if err != nil {
		s.logger.WarnContext(ctx, "Weather lookup failed, continuing without forecast",
			slog.String("city", city), slog.Any("error", err))
		return nil
	}
	return forecasts
}

// streamGeneration forwards model chunks as generation events while buffering
// the full text for the parse phase.
func (s *ServiceImpl) streamGeneration(ctx context.Context, ch chan<- types.StreamEvent, prompt string) (string, error) {
	stream, err := s.aiClient.GenerateContentStream(ctx, prompt, nil)
	if err != nil {
		return "", err
	}

	var buffer strings.Builder
	for chunk, err := range stream {
		if err != nil {
			return "", err
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		buffer.WriteString(text)
		if !s.sendEvent(ctx, ch, types.StreamEvent{Type: types.EventTypeGeneration, Data: text}) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("stream consumer stalled")
		}
	}
	return buffer.String(), nil
}
