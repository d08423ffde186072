package itinerary

import (
	"fmt"
	"strings"
	"time"

	"github.com/tripweaver/tripweaver/internal/types"
)

func buildIntentPrompt(question string) string {
	return fmt.Sprintf(`你是旅遊需求解析器。從下列使用者輸入中抽取目的地與天數，
只回傳 JSON，格式為 {"location": "地點", "days": 天數}，不要加任何說明文字。
天數必須是正整數；無法判斷時 days 填 1。

使用者輸入：%s`, question)
}

func buildGenerationPrompt(question string, intent types.TripIntent, briefing string, forecasts []types.DayForecast) string {
	var b strings.Builder

	fmt.Fprintf(&b, `你是專業的行程規劃師。根據使用者需求與下方候選資料，規劃 %d 天的行程。

使用者需求：%s
目的地：%s

`, intent.Days, question, intent.Location)

	if len(forecasts) > 0 {
		b.WriteString("【天氣預報】\n")
		for _, f := range forecasts {
			fmt.Fprintf(&b, "- %s：%s，%.0f~%.0f°C，降雨機率 %d%%\n",
				f.Date.Format("01/02"), f.Condition, f.TempMinC, f.TempMaxC, f.RainChance)
		}
		b.WriteString("\n")
	}

	b.WriteString(briefing)

	b.WriteString(`

規劃原則：
- 優先使用候選清單中的地點，每天依分群安排，減少跨區移動。
- 每天安排 1-2 個美食候選穿插在景點之間。
- 下雨天優先安排室內景點。

只回傳 JSON，不要加任何說明文字，格式：
{
  "title": "行程標題",
  "sections": [
    {"day": 1, "time": "09:00-11:00", "location": "地點名稱", "details": ["活動說明"]}
  ]
}
time 一律使用 HH:MM-HH:MM 格式，location 使用候選清單中的正式名稱。`)

	return b.String()
}

// forecastEvent shapes the weather payload for the stream.
type forecastEvent struct {
	City      string              `json:"city,omitempty"`
	Forecasts []types.DayForecast `json:"forecasts,omitempty"`
	Warning   string              `json:"warning,omitempty"`
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}
