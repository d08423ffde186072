// Package weather is the thin client for the external forecast collaborator.
// Forecast failures are soft everywhere in the pipeline: callers substitute an
// empty forecast and surface a warning instead of aborting.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tripweaver/tripweaver/internal/types"
)

// Client is the forecast collaborator contract.
type Client interface {
	Forecast(ctx context.Context, city string, dates []time.Time) ([]types.DayForecast, error)
}

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

var _ Client = (*HTTPClient)(nil)

// HTTPClient resolves a city to coordinates and fetches its daily forecast.
type HTTPClient struct {
	httpClient   *http.Client
	geocodingURL string
	forecastURL  string
	logger       *slog.Logger
}

func NewHTTPClient(logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		geocodingURL: defaultGeocodingURL,
		forecastURL:  defaultForecastURL,
		logger:       logger,
	}
}

type geocodingResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Daily struct {
		Time                     []string  `json:"time"`
		WeatherCode              []int     `json:"weathercode"`
		TemperatureMax           []float64 `json:"temperature_2m_max"`
		TemperatureMin           []float64 `json:"temperature_2m_min"`
		PrecipitationProbability []int     `json:"precipitation_probability_max"`
	} `json:"daily"`
}

func (c *HTTPClient) Forecast(ctx context.Context, city string, dates []time.Time) ([]types.DayForecast, error) {
	if city == "" || len(dates) == 0 {
		return nil, fmt.Errorf("forecast requires a city and at least one date")
	}

	lat, lon, err := c.geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	params.Set("timezone", "Asia/Taipei")
	params.Set("start_date", dates[0].Format("2006-01-02"))
	params.Set("end_date", dates[len(dates)-1].Format("2006-01-02"))

	var resp forecastResponse
	if err := c.getJSON(ctx, c.forecastURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}

	forecasts := make([]types.DayForecast, 0, len(resp.Daily.Time))
	for i, day := range resp.Daily.Time {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		f := types.DayForecast{Date: date}
		if i < len(resp.Daily.WeatherCode) {
			f.Condition = conditionFromCode(resp.Daily.WeatherCode[i])
		}
		if i < len(resp.Daily.TemperatureMax) {
			f.TempMaxC = resp.Daily.TemperatureMax[i]
		}
		if i < len(resp.Daily.TemperatureMin) {
			f.TempMinC = resp.Daily.TemperatureMin[i]
		}
		if i < len(resp.Daily.PrecipitationProbability) {
			f.RainChance = resp.Daily.PrecipitationProbability[i]
		}
		forecasts = append(forecasts, f)
	}
	if len(forecasts) == 0 {
		return nil, fmt.Errorf("no forecast data for %s", city)
	}
	return forecasts, nil
}

func (c *HTTPClient) geocode(ctx context.Context, city string) (float64, float64, error) {
	params := url.Values{}
	params.Set("name", city)
	params.Set("count", "1")
	params.Set("language", "zh")

	var resp geocodingResponse
	if err := c.getJSON(ctx, c.geocodingURL+"?"+params.Encode(), &resp); err != nil {
		return 0, 0, fmt.Errorf("geocoding request failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return 0, 0, fmt.Errorf("city %q not found by geocoder", city)
	}
	return resp.Results[0].Latitude, resp.Results[0].Longitude, nil
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

func conditionFromCode(code int) string {
	switch {
	case code == 0:
		return "晴天"
	case code <= 3:
		return "多雲"
	case code <= 48:
		return "有霧"
	case code <= 67:
		return "有雨"
	case code <= 77:
		return "降雪"
	case code <= 82:
		return "陣雨"
	default:
		return "雷雨"
	}
}
