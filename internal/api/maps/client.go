// Package maps is the thin client for the external places/routing
// collaborator. Consumers depend on the Client interface so tests can stub
// lookups and the rest of the pipeline stays ignorant of the wire format.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tripweaver/tripweaver/internal/types"
)

// ErrPlaceNotFound signals the collaborator knows nothing about the name.
// Enrichment treats it as a soft, per-section failure.
var ErrPlaceNotFound = errors.New("place not found")

// BusinessStatusClosedPermanently is the collaborator's closure signal; the
// section keeps its place data and gains a staleness warning instead of being
// swapped for something the user never asked for.
const BusinessStatusClosedPermanently = "CLOSED_PERMANENTLY"

// Client is the places/routing collaborator contract.
type Client interface {
	PlaceDetails(ctx context.Context, name, regionHint string) (*types.PlaceDetails, error)
	Route(ctx context.Context, originName, destName string) (*types.TravelInfo, error)
}

const (
	findPlaceURL  = "https://maps.googleapis.com/maps/api/place/findplacefromtext/json"
	directionsURL = "https://maps.googleapis.com/maps/api/directions/json"
)

var _ Client = (*HTTPClient)(nil)

type HTTPClient struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
}

func NewHTTPClient(logger *slog.Logger) (*HTTPClient, error) {
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY environment variable is not set")
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		logger:     logger,
	}, nil
}

type findPlaceResponse struct {
	Status     string `json:"status"`
	Candidates []struct {
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		BusinessStatus   string  `json:"business_status"`
		OpeningHours     struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
	} `json:"candidates"`
}

func (c *HTTPClient) PlaceDetails(ctx context.Context, name, regionHint string) (*types.PlaceDetails, error) {
	input := name
	if regionHint != "" {
		input = regionHint + " " + name
	}

	params := url.Values{}
	params.Set("input", input)
	params.Set("inputtype", "textquery")
	params.Set("language", "zh-TW")
	params.Set("fields", "name,formatted_address,rating,user_ratings_total,business_status,opening_hours")
	params.Set("key", c.apiKey)

	var resp findPlaceResponse
	if err := c.getJSON(ctx, findPlaceURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("place lookup failed: %w", err)
	}
	if resp.Status == "ZERO_RESULTS" || len(resp.Candidates) == 0 {
		return nil, ErrPlaceNotFound
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("place lookup returned status %s", resp.Status)
	}

	best := resp.Candidates[0]
	return &types.PlaceDetails{
		Name:           best.Name,
		Address:        best.FormattedAddress,
		Rating:         best.Rating,
		ReviewCount:    best.UserRatingsTotal,
		OpeningHours:   best.OpeningHours.WeekdayText,
		BusinessStatus: best.BusinessStatus,
	}, nil
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Distance struct {
				Text string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

func (c *HTTPClient) Route(ctx context.Context, originName, destName string) (*types.TravelInfo, error) {
	params := url.Values{}
	params.Set("origin", originName)
	params.Set("destination", destName)
	params.Set("mode", "driving")
	params.Set("language", "zh-TW")
	params.Set("key", c.apiKey)

	var resp directionsResponse
	if err := c.getJSON(ctx, directionsURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("route lookup failed: %w", err)
	}
	if resp.Status != "OK" || len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return nil, fmt.Errorf("route lookup returned status %s", resp.Status)
	}

	leg := resp.Routes[0].Legs[0]
	return &types.TravelInfo{
		From:            originName,
		To:              destName,
		DistanceText:    leg.Distance.Text,
		DurationSeconds: leg.Duration.Value,
		Mode:            "driving",
	}, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
