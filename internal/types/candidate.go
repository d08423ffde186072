package types

import (
	"github.com/google/uuid"
)

// Category classifies a stored candidate.
type Category string

const (
	CategoryNatural  Category = "natural"
	CategoryCultural Category = "cultural"
	CategoryMuseum   Category = "museum"
	CategoryLeisure  Category = "leisure"
	CategoryFood     Category = "food"
	CategoryFactory  Category = "factory"
	CategoryShopping Category = "shopping"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Candidate is a point of interest or eatery from the vector store.
// Records are written by an external ingestion process and are read-only here.
type Candidate struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Category    Category    `json:"category"`
	City        string      `json:"city"`
	District    string      `json:"district,omitempty"`
	Address     string      `json:"address,omitempty"`
	Description string      `json:"description,omitempty"`
	Features    []string    `json:"features,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
	Rating      *float64    `json:"rating,omitempty"`
	RatingCount *int        `json:"rating_count,omitempty"`
}

// ScoredCandidate pairs a candidate with its cosine similarity to a query.
type ScoredCandidate struct {
	Candidate
	Similarity float64 `json:"similarity"`
}

// CandidateFilter constrains a similarity search.
type CandidateFilter struct {
	City            string
	Category        Category
	ExcludeCategory Category
	Threshold       float64
	Limit           int
}

// DayCluster is a geographically grouped subset of candidates assigned to one
// itinerary day. DayIndex values form a dense 0-based range.
type DayCluster struct {
	DayIndex int         `json:"day_index"`
	Centroid Coordinates `json:"centroid"`
	Members  []Candidate `json:"members"`
}
