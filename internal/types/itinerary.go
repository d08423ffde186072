package types

// ItinerarySection is a single scheduled stop. Day/Time/Location/Details come
// from the language model; MapsData and TravelInfo are filled in by the
// enrichment service afterwards and stay nil when a lookup fails.
type ItinerarySection struct {
	Day        int         `json:"day"`
	Time       string      `json:"time"`
	Location   string      `json:"location"`
	Details    []string    `json:"details,omitempty"`
	MapsData   *MapsData   `json:"maps_data,omitempty"`
	TravelInfo *TravelInfo `json:"travel_info,omitempty"`
	Warning    string      `json:"warning,omitempty"`
}

type MapsData struct {
	Rating       float64  `json:"rating"`
	Address      string   `json:"address,omitempty"`
	ReviewCount  int      `json:"review_count"`
	WilsonScore  float64  `json:"wilson_score"`
	OpeningHours []string `json:"opening_hours,omitempty"`
	ClosureType  string   `json:"closure_type,omitempty"`
}

// TravelInfo is a computed leg between two same-day adjacent stops, attached
// to the earlier section of the pair.
type TravelInfo struct {
	From            string `json:"from"`
	To              string `json:"to"`
	DistanceText    string `json:"distance_text"`
	DurationSeconds int    `json:"duration_seconds"`
	Mode            string `json:"mode"`
}

type TripItinerary struct {
	Title    string             `json:"title"`
	Sections []ItinerarySection `json:"sections"`
}

// TripStats summarises dwell vs. travel time for a finished itinerary.
type TripStats struct {
	TotalDwellTime  string `json:"total_dwell_time"`
	TotalTravelTime string `json:"total_travel_time"`
	TravelRatio     string `json:"travel_ratio"`
}

// SynthesisResult is the payload of the final "result" stream event.
type SynthesisResult struct {
	Itinerary TripItinerary `json:"itinerary"`
	Stats     TripStats     `json:"stats"`
	Filters   Filter        `json:"filters"`
	Warnings  []string      `json:"warnings,omitempty"`
}
