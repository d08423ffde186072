package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse(t *testing.T) {
	t.Run("strips markdown fences", func(t *testing.T) {
		input := "```json\n{\"title\": \"test\"}\n```"
		assert.Equal(t, `{"title": "test"}`, cleanJSONResponse(input))
	})

	t.Run("strips bare fences", func(t *testing.T) {
		input := "```\n{\"title\": \"test\"}\n```"
		assert.Equal(t, `{"title": "test"}`, cleanJSONResponse(input))
	})

	t.Run("extracts object from surrounding prose", func(t *testing.T) {
		input := "好的，以下是行程：\n{\"title\": \"台南之旅\"}\n希望您喜歡！"
		assert.Equal(t, `{"title": "台南之旅"}`, cleanJSONResponse(input))
	})

	t.Run("passes through when no braces", func(t *testing.T) {
		assert.Equal(t, "not json at all", cleanJSONResponse("not json at all"))
	})
}

func TestParseItinerary(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		raw := "```json\n" + `{
			"title": "台南兩日遊",
			"sections": [
				{"day": 1, "time": "09:00-11:00", "location": "赤崁樓", "details": ["參觀古蹟"]},
				{"day": 1, "time": "11:30-13:00", "location": "度小月擔仔麵"}
			]
		}` + "\n```"

		itinerary, err := parseItinerary(raw)
		require.NoError(t, err)
		assert.Equal(t, "台南兩日遊", itinerary.Title)
		require.Len(t, itinerary.Sections, 2)
		assert.Equal(t, "赤崁樓", itinerary.Sections[0].Location)
		assert.Equal(t, []string{"參觀古蹟"}, itinerary.Sections[0].Details)
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		_, err := parseItinerary(`{"title": "broken", "sections": [`)
		assert.Error(t, err)
	})

	t.Run("empty output is an error", func(t *testing.T) {
		_, err := parseItinerary("")
		assert.Error(t, err)
	})

	t.Run("no sections is an error", func(t *testing.T) {
		_, err := parseItinerary(`{"title": "empty", "sections": []}`)
		assert.Error(t, err)
	})
}
