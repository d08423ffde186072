package itinerary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDayCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"台南3天2夜", 3},
		{"幫我規劃 5 天的行程", 5},
		{"a 4 days trip around Tainan", 4},
		{"台南兩天一夜", 2},
		{"三天的嘉義行程", 3},
		{"十天環島", 10},
		{"台南一日遊", 1},
		{"當天來回的行程", 1},
		{"去台南玩", 1},
		{"", 1},
		{"0天", 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeDayCount(tt.text))
		})
	}
}

func TestNormalizeDayCountDigitsWinOverNumerals(t *testing.T) {
	// 5 天 appears as digits, 三天 as numerals; digits take priority.
	assert.Equal(t, 5, normalizeDayCount("原本想三天，改成 5 天"))
}

func TestResolveDates(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	dates := resolveDates(now, 3)
	assert.Len(t, dates, 3)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), dates[2])

	// Day counts below one still produce a single date.
	assert.Len(t, resolveDates(now, 0), 1)
}
