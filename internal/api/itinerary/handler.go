package itinerary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tripweaver/tripweaver/app/observability/metrics"
	"github.com/tripweaver/tripweaver/internal/api"
	"github.com/tripweaver/tripweaver/internal/api/retrieval"
	"github.com/tripweaver/tripweaver/internal/types"
)

type HandlerImpl struct {
	service          Service
	retrievalService retrieval.Service
	logger           *slog.Logger
}

func NewHandlerImpl(service Service, retrievalService retrieval.Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service:          service,
		retrievalService: retrievalService,
		logger:           logger,
	}
}

// SynthesizeTripStreamHandler runs the synthesis pipeline for a free-text
// question and relays its events over SSE.
func (h *HandlerImpl) SynthesizeTripStreamHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()

	var req types.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSEError(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeSSEError(w, "Question cannot be empty")
		return
	}

	streamResp, err := h.service.SynthesizeTripStream(ctx, req)
	if err != nil {
		h.writeSSEError(w, fmt.Sprintf("Failed to start synthesis: %v", err))
		return
	}
	defer streamResp.Cancel()

	start := time.Now()
	metrics.Get().SynthesisRequestsTotal.Add(ctx, 1)
	defer func() {
		metrics.Get().SynthesisDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	h.logger.InfoContext(ctx, "Started synthesis stream",
		slog.String("request_id", streamResp.RequestID.String()))

	for {
		select {
		case event, ok := <-streamResp.Stream:
			if !ok {
				h.logger.InfoContext(ctx, "Stream closed",
					slog.String("request_id", streamResp.RequestID.String()))
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.ErrorContext(ctx, "Failed to marshal event", slog.Any("error", err))
				continue
			}

			fmt.Fprintf(w, "id: %s\n", event.EventID)
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

		case <-ctx.Done():
			h.logger.InfoContext(ctx, "Client disconnected",
				slog.String("request_id", streamResp.RequestID.String()))
			return
		}
	}
}

func (h *HandlerImpl) writeSSEError(w http.ResponseWriter, errorMsg string) {
	event := types.StreamEvent{
		Type:      types.EventTypeError,
		Error:     errorMsg,
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
		IsFinal:   true,
	}
	data, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s\n", event.EventID)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// RetrieveHandler is the synchronous candidate lookup: same retrieval the
// pipeline uses, returned as JSON with the rendered briefing.
func (h *HandlerImpl) RetrieveHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("Handler").Start(r.Context(), "RetrieveHandler")
	defer span.End()

	var params types.RetrieveParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if params.Days < 1 {
		params.Days = 1
	}

	start := time.Now()
	result, err := h.retrievalService.Retrieve(ctx, params)
	metrics.Get().RetrievalDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Retrieval failed")
		h.logger.ErrorContext(ctx, "Candidate retrieval failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve candidates")
		return
	}

	span.SetAttributes(
		attribute.Int("attractions.count", len(result.Attractions)),
		attribute.Int("restaurants.count", len(result.Restaurants)),
	)
	span.SetStatus(codes.Ok, "Retrieval completed")

	api.WriteJSONResponse(w, r, http.StatusOK, types.RetrieveResponse{
		Attractions: result.Attractions,
		Restaurants: result.Restaurants,
		Filters:     result.Filters,
		Summary:     h.retrievalService.FormatBriefing(result, params.Days),
	})
}
