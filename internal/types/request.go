package types

import "time"

// Filter is the normalized city/category constraint derived from a request.
// Empty fields mean "unconstrained".
type Filter struct {
	City     string `json:"city,omitempty"`
	Category string `json:"category,omitempty"`
}

// TripRequest is the streaming endpoint's input.
type TripRequest struct {
	Question string `json:"question"`
}

// TripIntent is what intent parsing extracts from the free-text question.
// Warning is set when parsing degraded to defaults.
type TripIntent struct {
	Location string `json:"location"`
	City     string `json:"city,omitempty"`
	Days     int    `json:"days"`
	Warning  string `json:"warning,omitempty"`
}

// RetrieveParams drives candidate retrieval, for both the pipeline's internal
// call and the synchronous helper endpoint.
type RetrieveParams struct {
	Location            string   `json:"location"`
	Days                int      `json:"days"`
	TripType            string   `json:"trip_type,omitempty"`
	Preferences         []string `json:"preferences,omitempty"`
	SpecialRequirements string   `json:"special_requirements,omitempty"`
}

type RetrievalResult struct {
	Attractions []ScoredCandidate `json:"attractions"`
	Restaurants []ScoredCandidate `json:"restaurants"`
	Filters     Filter            `json:"filters"`
}

// RetrieveResponse is the synchronous helper's payload; Summary is the
// day-clustered briefing rendered from the same result.
type RetrieveResponse struct {
	Attractions []ScoredCandidate `json:"attractions"`
	Restaurants []ScoredCandidate `json:"restaurants"`
	Filters     Filter            `json:"filters"`
	Summary     string            `json:"summary"`
}

type DayForecast struct {
	Date        time.Time `json:"date"`
	Condition   string    `json:"condition"`
	TempMinC    float64   `json:"temp_min_c"`
	TempMaxC    float64   `json:"temp_max_c"`
	RainChance  int       `json:"rain_chance"`
	Description string    `json:"description,omitempty"`
}

// PlaceDetails is the maps collaborator's answer for one resolved place.
type PlaceDetails struct {
	Name           string   `json:"name"`
	Address        string   `json:"address,omitempty"`
	Rating         float64  `json:"rating"`
	ReviewCount    int      `json:"review_count"`
	OpeningHours   []string `json:"opening_hours,omitempty"`
	BusinessStatus string   `json:"business_status,omitempty"`
}
