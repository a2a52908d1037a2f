// Package metrics exposes the Prometheus metrics of the MLBAM client.
// All metrics are defined in their respective packages (cache, client, batch)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the MLBAM client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Page Cache Metrics (pkg/cache):
//   - mlbam_page_fetches_total{outcome} (Counter): Fetches by outcome (fetched, not_modified, error)
//   - mlbam_conditional_requests_total (Counter): Requests sent with If-Modified-Since
//   - mlbam_304_responses_total (Counter): 304 Not Modified responses
//   - mlbam_fetch_errors_total{class} (Counter): Fetch errors by class (network, status, request)
//   - mlbam_fetch_duration_seconds (Histogram): Duration of a single HTTP exchange
//   - mlbam_fetched_bytes_total (Counter): Body bytes received with 200 responses
//   - mlbam_requester_lookups_total{result} (Counter): Requester reads by result (hit, miss)
//   - mlbam_requester_evictions_total (Counter): Pages dropped to stay within capacity
//   - mlbam_requester_pages (Gauge): Pages currently tracked
//
// Feed Metrics (pkg/client):
//   - mlbam_client_requests_total{endpoint, outcome} (Counter): Feed calls by endpoint and outcome
//   - mlbam_client_request_duration_seconds{endpoint} (Histogram): Feed call duration, retries included
//
// Retry Metrics (pkg/client):
//   - mlbam_client_retries_total{error_class} (Counter): Retry attempts by error class
//   - mlbam_client_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - mlbam_client_retry_exhausted_total{error_class} (Counter): Calls that exhausted max attempts
//
// Batch Metrics (pkg/batch):
//   - mlbam_batch_urls_total{outcome} (Counter): URLs read by batch fetches
//   - mlbam_batch_duration_seconds (Histogram): Wall time of a whole batch
//
// Example Prometheus Queries:
//
//   # Revalidation hit rate (body not re-sent)
//   rate(mlbam_304_responses_total[5m]) / rate(mlbam_conditional_requests_total[5m])
//
//   # Eviction pressure
//   rate(mlbam_requester_evictions_total[5m])
//
//   # Network error rate
//   rate(mlbam_fetch_errors_total{class="network"}[5m])
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(mlbam_fetch_duration_seconds_bucket[5m]))
