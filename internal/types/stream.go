package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StreamEvent is one server-push event on the synthesis stream.
type StreamEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventID   string      `json:"event_id"`
	IsFinal   bool        `json:"is_final,omitempty"`
}

// Event wire types, emitted in this order on the happy path. "generation"
// repeats once per model chunk; "error" terminates the stream from any phase.
const (
	EventTypeParsing         = "parsing"
	EventTypeParsingResult   = "parsing_result"
	EventTypeWeather         = "weather"
	EventTypeDebugPrompt     = "debug_prompt"
	EventTypeGeneration      = "generation"
	EventTypeParsingResponse = "parsing_response"
	EventTypeMaps            = "maps"
	EventTypeResult          = "result"
	EventTypeDone            = "done"
	EventTypeError           = "error"
)

// StreamingResponse wraps the streaming channel and request metadata.
type StreamingResponse struct {
	RequestID uuid.UUID
	Stream    <-chan StreamEvent
	Cancel    context.CancelFunc
}
