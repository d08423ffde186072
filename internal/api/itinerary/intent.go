package itinerary

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tripweaver/tripweaver/internal/api/retrieval"
	"github.com/tripweaver/tripweaver/internal/types"
)

const (
	// defaultLocation keeps the pipeline alive when intent parsing fails: a
	// degraded region-wide itinerary beats a dead stream.
	defaultLocation = "default region"
	defaultDays     = 1

	intentParseWarning = "無法完整解析需求，改用預設地區與天數"
)

var dayDigitsRe = regexp.MustCompile(`(\d+)\s*(?:天|日|days?)`)

// chineseDayCounts is matched in order, longest first, so 十一天 resolves
// before 一天 and 兩天 before 天.
var chineseDayCounts = []struct {
	word string
	days int
}{
	{"十一天", 11}, {"十二天", 12},
	{"十天", 10}, {"九天", 9}, {"八天", 8}, {"七天", 7},
	{"六天", 6}, {"五天", 5}, {"四天", 4}, {"三天", 3},
	{"兩天", 2}, {"二天", 2}, {"一天", 1},
	{"當天來回", 1}, {"一日遊", 1}, {"二日遊", 2}, {"兩日遊", 2}, {"三日遊", 3},
}

// normalizeDayCount extracts a trip length from free text. Digits win over
// Chinese numerals; no match means a single day.
func normalizeDayCount(text string) int {
	if m := dayDigitsRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	for _, entry := range chineseDayCounts {
		if strings.Contains(text, entry.word) {
			return entry.days
		}
	}
	return defaultDays
}

// parseIntent asks the model to extract {location, days} from the question.
// Any failure — transport, malformed JSON, nonsense values — degrades to the
// defaults with a warning; intent parsing is never a hard stop.
func (s *ServiceImpl) parseIntent(ctx context.Context, question string) types.TripIntent {
	fallback := types.TripIntent{
		Location: defaultLocation,
		Days:     normalizeDayCount(question),
		Warning:  intentParseWarning,
	}

	response, err := s.aiClient.GenerateResponse(ctx, buildIntentPrompt(question), nil)
	if err != nil {
		s.logger.WarnContext(ctx, "Intent parse request failed, using defaults", slog.Any("error", err))
		return fallback
	}

	cleaned := cleanJSONResponse(response.Text())
	var parsed struct {
		Location string `json:"location"`
		Days     int    `json:"days"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		s.logger.WarnContext(ctx, "Intent parse returned malformed JSON, using defaults",
			slog.Any("error", err), slog.Int("response_length", len(cleaned)))
		return fallback
	}

	intent := types.TripIntent{
		Location: strings.TrimSpace(parsed.Location),
		Days:     parsed.Days,
	}
	if intent.Location == "" {
		intent.Location = defaultLocation
		intent.Warning = intentParseWarning
	}
	if intent.Days <= 0 {
		intent.Days = normalizeDayCount(question)
	}
	if intent.Location != defaultLocation {
		intent.City = retrieval.NormalizeFilters(intent.Location).City
	}
	return intent
}

// resolveDates maps a day count onto consecutive calendar dates starting today.
func resolveDates(now time.Time, days int) []time.Time {
	if days < 1 {
		days = 1
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dates := make([]time.Time, days)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}
