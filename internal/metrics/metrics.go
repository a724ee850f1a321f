// Package metrics holds the prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summeriq_provider_requests_total",
			Help: "Provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summeriq_provider_retries_total",
			Help: "Rate-limit retries issued against the provider",
		},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "summeriq_provider_request_duration_seconds",
			Help:    "Latency of a single provider call",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider"},
	)

	analysisCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summeriq_analysis_cache_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)

	extractedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summeriq_extracted_entries_total",
			Help: "Archive entries written to the byte store",
		},
	)

	documents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summeriq_documents_total",
			Help: "Synthesized project documents",
		},
		[]string{"degraded"},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summeriq_event_subscribers",
			Help: "Open progress event subscriptions",
		},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summeriq_events_published_total",
			Help: "Progress events published by type",
		},
		[]string{"type"},
	)
)

func RecordProviderCall(provider, outcome string, d time.Duration) {
	providerRequests.WithLabelValues(provider, outcome).Inc()
	providerDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordRetry() { providerRetries.Inc() }

func RecordCacheHit()  { analysisCache.WithLabelValues("hit").Inc() }
func RecordCacheMiss() { analysisCache.WithLabelValues("miss").Inc() }

func RecordExtracted(n int) { extractedEntries.Add(float64(n)) }

func RecordDocument(degraded bool) {
	documents.WithLabelValues(strconv.FormatBool(degraded)).Inc()
}

func SetEventSubscribers(n int) { eventSubscribers.Set(float64(n)) }

func RecordEvent(eventType string) { eventsPublished.WithLabelValues(eventType).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
