package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SynthesisRequestsTotal   metric.Int64Counter
	SynthesisDurationSeconds metric.Float64Histogram
	RetrievalDurationSeconds metric.Float64Histogram
	EnrichmentFailuresTotal  metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments exactly once,
// using the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tripweaver")
		var err error
		m := &AppMetrics{}

		m.SynthesisRequestsTotal, err = meter.Int64Counter(
			"synthesis_requests_total",
			metric.WithDescription("Total number of trip synthesis requests started"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create synthesis_requests_total: %v", err)
		}

		m.SynthesisDurationSeconds, err = meter.Float64Histogram(
			"synthesis_duration_seconds",
			metric.WithDescription("End-to-end duration of trip synthesis streams in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create synthesis_duration_seconds: %v", err)
		}

		m.RetrievalDurationSeconds, err = meter.Float64Histogram(
			"retrieval_duration_seconds",
			metric.WithDescription("Duration of candidate retrieval in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create retrieval_duration_seconds: %v", err)
		}

		m.EnrichmentFailuresTotal, err = meter.Int64Counter(
			"enrichment_failures_total",
			metric.WithDescription("Total number of failed place or route lookups during enrichment"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create enrichment_failures_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
