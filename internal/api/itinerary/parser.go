package itinerary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

// cleanJSONResponse strips markdown fences and surrounding prose so the model
// output can be unmarshalled. Models wrap JSON in ```json blocks or prepend
// commentary more often than not.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	// Extract the first { .. last } span in case the model added text around
	// the object.
	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return response
	}
	lastBrace := strings.LastIndex(response, "}")
	if lastBrace == -1 || lastBrace <= firstBrace {
		return response
	}
	return strings.TrimSpace(response[firstBrace : lastBrace+1])
}

// parseItinerary decodes the fully buffered generation output. This is the one
// hard parse in the pipeline: a completed stream that does not contain a valid
// itinerary cannot be degraded, only reported.
func parseItinerary(raw string) (*types.TripItinerary, error) {
	cleaned := cleanJSONResponse(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty generation output")
	}

	var itinerary types.TripItinerary
	if err := json.Unmarshal([]byte(cleaned), &itinerary); err != nil {
		return nil, fmt.Errorf("failed to parse itinerary JSON: %w", err)
	}
	if len(itinerary.Sections) == 0 {
		return nil, fmt.Errorf("itinerary contains no sections")
	}
	return &itinerary, nil
}
