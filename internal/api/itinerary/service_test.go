package itinerary

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/tripweaver/tripweaver/internal/types"
)

type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, prompt, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.GenerateContentResponse), args.Error(1)
}

func (m *MockAIClient) GenerateContentStream(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (iter.Seq2[*genai.GenerateContentResponse, error], error) {
	args := m.Called(ctx, prompt, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(iter.Seq2[*genai.GenerateContentResponse, error]), args.Error(1)
}

type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Search(ctx context.Context, queryText string, filter types.Filter, limit int, threshold float64) ([]types.ScoredCandidate, error) {
	args := m.Called(ctx, queryText, filter, limit, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ScoredCandidate), args.Error(1)
}

func (m *MockRetrievalService) Retrieve(ctx context.Context, params types.RetrieveParams) (*types.RetrievalResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RetrievalResult), args.Error(1)
}

func (m *MockRetrievalService) FormatBriefing(result *types.RetrievalResult, days int) string {
	args := m.Called(result, days)
	return args.String(0)
}

type MockEnrichmentService struct {
	mock.Mock
}

func (m *MockEnrichmentService) EnrichPlaces(ctx context.Context, itinerary *types.TripItinerary, regionHint string) []string {
	args := m.Called(ctx, itinerary, regionHint)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockEnrichmentService) ComputeLegs(ctx context.Context, itinerary *types.TripItinerary) {
	m.Called(ctx, itinerary)
}

type MockWeatherClient struct {
	mock.Mock
}

func (m *MockWeatherClient) Forecast(ctx context.Context, city string, dates []time.Time) ([]types.DayForecast, error) {
	args := m.Called(ctx, city, dates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DayForecast), args.Error(1)
}

func genaiTextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func genaiStream(chunks ...string) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range chunks {
			if !yield(genaiTextResponse(chunk), nil) {
				return
			}
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(ai *MockAIClient, ret *MockRetrievalService, enr *MockEnrichmentService, wea *MockWeatherClient) *ServiceImpl {
	svc := NewServiceImpl(ai, ret, enr, wea, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func collectEvents(t *testing.T, stream <-chan types.StreamEvent) []types.StreamEvent {
	t.Helper()
	var events []types.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func eventTypes(events []types.StreamEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

const validItineraryJSON = `{
	"title": "台南兩日遊",
	"sections": [
		{"day": 1, "time": "09:00-11:00", "location": "赤崁樓", "details": ["參觀"]},
		{"day": 1, "time": "12:00-13:00", "location": "度小月擔仔麵"}
	]
}`

func TestSynthesizeTripStreamHappyPath(t *testing.T) {
	ai := new(MockAIClient)
	ret := new(MockRetrievalService)
	enr := new(MockEnrichmentService)
	wea := new(MockWeatherClient)

	ai.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiTextResponse(`{"location": "台南", "days": 2}`), nil)
	wea.On("Forecast", mock.Anything, "台南市", mock.Anything).
		Return([]types.DayForecast{{Condition: "晴天", TempMaxC: 28}}, nil)
	ret.On("Retrieve", mock.Anything, types.RetrieveParams{Location: "台南", Days: 2}).
		Return(&types.RetrievalResult{Filters: types.Filter{City: "台南市"}}, nil)
	ret.On("FormatBriefing", mock.Anything, 2).Return("=== 候選 ===")
	ai.On("GenerateContentStream", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiStream("```json\n"+validItineraryJSON[:40], validItineraryJSON[40:]+"\n```"), nil)
	enr.On("EnrichPlaces", mock.Anything, mock.Anything, "台南市").Return([]string(nil))
	enr.On("ComputeLegs", mock.Anything, mock.Anything).Return()

	svc := newTestService(ai, ret, enr, wea)
	resp, err := svc.SynthesizeTripStream(context.Background(), types.TripRequest{Question: "台南兩天"})
	require.NoError(t, err)
	defer resp.Cancel()

	events := collectEvents(t, resp.Stream)
	assert.Equal(t, []string{
		types.EventTypeParsing,
		types.EventTypeParsingResult,
		types.EventTypeWeather,
		types.EventTypeDebugPrompt,
		types.EventTypeGeneration,
		types.EventTypeGeneration,
		types.EventTypeParsingResponse,
		types.EventTypeMaps,
		types.EventTypeResult,
		types.EventTypeDone,
	}, eventTypes(events))

	final := events[len(events)-1]
	assert.True(t, final.IsFinal)

	result := events[len(events)-2].Data.(types.SynthesisResult)
	assert.Equal(t, "台南兩日遊", result.Itinerary.Title)
	assert.Equal(t, "台南市", result.Filters.City)
	assert.Empty(t, result.Warnings)
	ret.AssertExpectations(t)
	enr.AssertExpectations(t)
}

func TestSynthesizeTripStreamIntentFailureIsSoft(t *testing.T) {
	ai := new(MockAIClient)
	ret := new(MockRetrievalService)
	enr := new(MockEnrichmentService)
	wea := new(MockWeatherClient)

	// Model answers with prose instead of JSON: pipeline falls back to the
	// default region and keeps going.
	ai.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiTextResponse("抱歉，我不太確定您想去哪裡。"), nil)
	ret.On("Retrieve", mock.Anything, types.RetrieveParams{Location: defaultLocation, Days: 1}).
		Return(&types.RetrievalResult{}, nil)
	ret.On("FormatBriefing", mock.Anything, 1).Return("（無符合條件的候選資料）")
	ai.On("GenerateContentStream", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiStream(validItineraryJSON), nil)
	enr.On("EnrichPlaces", mock.Anything, mock.Anything, "").Return([]string(nil))
	enr.On("ComputeLegs", mock.Anything, mock.Anything).Return()

	svc := newTestService(ai, ret, enr, wea)
	resp, err := svc.SynthesizeTripStream(context.Background(), types.TripRequest{Question: "隨便"})
	require.NoError(t, err)
	defer resp.Cancel()

	events := collectEvents(t, resp.Stream)
	typesSeen := eventTypes(events)
	assert.NotContains(t, typesSeen, types.EventTypeError)
	assert.Equal(t, types.EventTypeDone, typesSeen[len(typesSeen)-1])

	// parsing_result carries the degraded intent.
	payload := events[1].Data.(map[string]any)
	intent := payload["intent"].(types.TripIntent)
	assert.Equal(t, defaultLocation, intent.Location)
	assert.Equal(t, 1, intent.Days)
	assert.NotEmpty(t, intent.Warning)

	// The warning also rides the final result.
	var result types.SynthesisResult
	for _, e := range events {
		if e.Type == types.EventTypeResult {
			result = e.Data.(types.SynthesisResult)
		}
	}
	assert.Contains(t, result.Warnings, intentParseWarning)

	// No city resolved, so weather is skipped but the event still flows.
	wea.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, typesSeen, types.EventTypeWeather)
}

func TestSynthesizeTripStreamWeatherFailureIsSoft(t *testing.T) {
	ai := new(MockAIClient)
	ret := new(MockRetrievalService)
	enr := new(MockEnrichmentService)
	wea := new(MockWeatherClient)

	ai.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiTextResponse(`{"location": "台南", "days": 1}`), nil)
	wea.On("Forecast", mock.Anything, "台南市", mock.Anything).
		Return(nil, fmt.Errorf("upstream down"))
	ret.On("Retrieve", mock.Anything, mock.Anything).
		Return(&types.RetrievalResult{Filters: types.Filter{City: "台南市"}}, nil)
	ret.On("FormatBriefing", mock.Anything, 1).Return("=== 候選 ===")
	ai.On("GenerateContentStream", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiStream(validItineraryJSON), nil)
	enr.On("EnrichPlaces", mock.Anything, mock.Anything, mock.Anything).Return([]string(nil))
	enr.On("ComputeLegs", mock.Anything, mock.Anything).Return()

	svc := newTestService(ai, ret, enr, wea)
	resp, err := svc.SynthesizeTripStream(context.Background(), types.TripRequest{Question: "台南一日遊"})
	require.NoError(t, err)
	defer resp.Cancel()

	events := collectEvents(t, resp.Stream)
	typesSeen := eventTypes(events)
	assert.NotContains(t, typesSeen, types.EventTypeError)
	assert.Equal(t, types.EventTypeDone, typesSeen[len(typesSeen)-1])

	var weatherEvent types.StreamEvent
	for _, e := range events {
		if e.Type == types.EventTypeWeather {
			weatherEvent = e
		}
	}
	payload := weatherEvent.Data.(forecastEvent)
	assert.Empty(t, payload.Forecasts)
	assert.NotEmpty(t, payload.Warning)
}

func TestSynthesizeTripStreamRetrievalFailureIsHard(t *testing.T) {
	ai := new(MockAIClient)
	ret := new(MockRetrievalService)
	enr := new(MockEnrichmentService)
	wea := new(MockWeatherClient)

	ai.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiTextResponse(`{"location": "台南", "days": 1}`), nil)
	wea.On("Forecast", mock.Anything, mock.Anything, mock.Anything).
		Return([]types.DayForecast{{Condition: "晴天"}}, nil)
	ret.On("Retrieve", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("connection refused"))

	svc := newTestService(ai, ret, enr, wea)
	resp, err := svc.SynthesizeTripStream(context.Background(), types.TripRequest{Question: "台南一日遊"})
	require.NoError(t, err)
	defer resp.Cancel()

	events := collectEvents(t, resp.Stream)
	final := events[len(events)-1]
	assert.Equal(t, types.EventTypeError, final.Type)
	assert.True(t, final.IsFinal)
	assert.Contains(t, final.Error, "候選資料檢索失敗")
	ai.AssertNotCalled(t, "GenerateContentStream", mock.Anything, mock.Anything, mock.Anything)
}

func TestSynthesizeTripStreamBadGenerationIsHard(t *testing.T) {
	ai := new(MockAIClient)
	ret := new(MockRetrievalService)
	enr := new(MockEnrichmentService)
	wea := new(MockWeatherClient)

	ai.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiTextResponse(`{"location": "台南", "days": 1}`), nil)
	wea.On("Forecast", mock.Anything, mock.Anything, mock.Anything).
		Return([]types.DayForecast{{Condition: "晴天"}}, nil)
	ret.On("Retrieve", mock.Anything, mock.Anything).
		Return(&types.RetrievalResult{Filters: types.Filter{City: "台南市"}}, nil)
	ret.On("FormatBriefing", mock.Anything, 1).Return("=== 候選 ===")
	ai.On("GenerateContentStream", mock.Anything, mock.Anything, mock.Anything).
		Return(genaiStream("這不是 JSON，而是一段說明文字。"), nil)

	svc := newTestService(ai, ret, enr, wea)
	resp, err := svc.SynthesizeTripStream(context.Background(), types.TripRequest{Question: "台南一日遊"})
	require.NoError(t, err)
	defer resp.Cancel()

	events := collectEvents(t, resp.Stream)
	typesSeen := eventTypes(events)
	assert.Contains(t, typesSeen, types.EventTypeGeneration)
	assert.Contains(t, typesSeen, types.EventTypeParsingResponse)

	final := events[len(events)-1]
	assert.Equal(t, types.EventTypeError, final.Type)
	assert.Contains(t, final.Error, "生成結果解析失敗")
	enr.AssertNotCalled(t, "EnrichPlaces", mock.Anything, mock.Anything, mock.Anything)
}

func TestSynthesizeTripStreamClientDisconnect(t *testing.T) {
	ai := new(MockAIClient)
	ret := new(MockRetrievalService)
	enr := new(MockEnrichmentService)
	wea := new(MockWeatherClient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // client gone before the pipeline starts

	ai.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.Canceled).Maybe()

	svc := newTestService(ai, ret, enr, wea)
	resp, err := svc.SynthesizeTripStream(ctx, types.TripRequest{Question: "台南"})
	require.NoError(t, err)
	defer resp.Cancel()

	// Channel must close without hanging; no terminal done event required.
	events := collectEvents(t, resp.Stream)
	for _, e := range events {
		assert.NotEqual(t, types.EventTypeDone, e.Type)
	}
}
