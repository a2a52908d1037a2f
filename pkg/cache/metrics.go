package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageFetches counts page fetches by outcome ("fetched", "not_modified", "error").
	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbam_page_fetches_total",
			Help: "Total number of page fetches by outcome",
		},
		[]string{"outcome"},
	)

	// ConditionalRequestsSent counts requests carrying If-Modified-Since.
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlbam_conditional_requests_total",
			Help: "Total number of conditional requests sent with If-Modified-Since",
		},
	)

	// NotModifiedResponses counts 304 responses to conditional requests.
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlbam_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// FetchErrors counts failed fetches by error class.
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbam_fetch_errors_total",
			Help: "Total number of failed page fetches by error class",
		},
		[]string{"class"},
	)

	// FetchDuration observes the round trip time of page fetches.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mlbam_fetch_duration_seconds",
			Help:    "Page fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// FetchedBytes counts body bytes transferred by 200 responses.
	FetchedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlbam_fetched_bytes_total",
			Help: "Total number of body bytes received in 200 responses",
		},
	)

	// RequesterLookups counts requester lookups by result ("hit", "miss").
	RequesterLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlbam_requester_lookups_total",
			Help: "Total number of requester URL lookups by result",
		},
		[]string{"result"},
	)

	// RequesterEvictions counts pages dropped to make room for a new URL.
	RequesterEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlbam_requester_evictions_total",
			Help: "Total number of pages evicted from requesters",
		},
	)

	// RequesterPages tracks the number of pages held across all requesters.
	RequesterPages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mlbam_requester_pages",
			Help: "Current number of pages tracked by requesters",
		},
	)
)
