package itinerary

import (
	"fmt"
	"strings"
	"time"

	"github.com/tripweaver/tripweaver/internal/types"
)

// defaultDwell is assumed for sections whose time field cannot be parsed as a
// HH:MM-HH:MM range.
const defaultDwell = 90 * time.Minute

// ComputeStats sums dwell time from the declared time ranges and travel time
// from the computed legs, and renders their ratio.
func ComputeStats(itinerary *types.TripItinerary) types.TripStats {
	var dwell, travel time.Duration
	for _, section := range itinerary.Sections {
		dwell += sectionDwell(section.Time)
		if section.TravelInfo != nil {
			travel += time.Duration(section.TravelInfo.DurationSeconds) * time.Second
		}
	}

	stats := types.TripStats{
		TotalDwellTime:  formatDuration(dwell),
		TotalTravelTime: formatDuration(travel),
		TravelRatio:     "0%",
	}
	if total := dwell + travel; total > 0 {
		stats.TravelRatio = fmt.Sprintf("%.0f%%", float64(travel)/float64(total)*100)
	}
	return stats
}

func sectionDwell(timeRange string) time.Duration {
	parts := strings.SplitN(strings.TrimSpace(timeRange), "-", 2)
	if len(parts) != 2 {
		return defaultDwell
	}
	start, err := time.Parse("15:04", strings.TrimSpace(parts[0]))
	if err != nil {
		return defaultDwell
	}
	end, err := time.Parse("15:04", strings.TrimSpace(parts[1]))
	if err != nil {
		return defaultDwell
	}
	d := end.Sub(start)
	if d <= 0 {
		return defaultDwell
	}
	return d
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Round(time.Minute).Minutes())
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
