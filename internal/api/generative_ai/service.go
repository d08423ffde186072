package generativeAI

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultEmbeddingModel = "gemini-embedding-001"

	embeddingDimension = 768
)

// AIClient wraps the Gemini API for text generation.
type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create client")
		return nil, err
	}
	if model == "" {
		model = defaultModel
	}
	return &AIClient{client: client, model: model}, nil
}

// GenerateContent returns the model's full text answer for a prompt.
func (ai *AIClient) GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateContent", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	responseText := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return responseText, nil
}

// GenerateResponse sends the prompt through a fresh chat and returns the raw
// response so callers can walk candidates/parts themselves.
func (ai *AIClient) GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateResponse", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	chat, err := ai.client.Chats.Create(ctx, ai.model, config, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create chat")
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	response, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Response generated successfully")
	return response, nil
}

// GenerateContentStream initiates a streaming content generation process.
func (ai *AIClient) GenerateContentStream(
	ctx context.Context,
	prompt string,
	config *genai.GenerateContentConfig,
) (iter.Seq2[*genai.GenerateContentResponse, error], error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateContentStream", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	if ai.client == nil {
		err := fmt.Errorf("AIClient's internal genai.Client is not initialized")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Client not initialized for stream")
		return nil, err
	}

	chat, err := ai.client.Chats.Create(ctx, ai.model, config, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create chat for stream")
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	span.SetStatus(codes.Ok, "Stream created")
	return chat.SendMessageStream(ctx, genai.Part{Text: prompt}), nil
}

// EmbeddingService produces the query vectors the candidate store is indexed
// on. Dimension is pinned to the store's vector(768) column.
type EmbeddingService struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewEmbeddingService(ctx context.Context, model string, logger *slog.Logger) (*EmbeddingService, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &EmbeddingService{client: client, model: model, logger: logger}, nil
}

func (s *EmbeddingService) GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateQueryEmbedding", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
		attribute.String("model", s.model),
	))
	defer span.End()

	result, err := s.client.Models.EmbedContent(ctx, s.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr[int32](embeddingDimension),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to embed content")
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		err := fmt.Errorf("empty embedding response")
		span.RecordError(err)
		return nil, err
	}

	values := result.Embeddings[0].Values
	span.SetAttributes(attribute.Int("embedding.dimension", len(values)))
	span.SetStatus(codes.Ok, "Embedding generated")
	return values, nil
}
