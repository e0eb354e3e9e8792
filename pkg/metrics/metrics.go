// Package metrics exposes the Prometheus registry used by the catalog cache.
// All metrics are defined in their respective packages (cache, pagination,
// loader, client, workerpool, ratelimit) via promauto to avoid circular
// dependencies. This package serves them and documents them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry all catalog metrics register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Page Cache Metrics (pkg/cache):
//   - catalog_page_cache_hits_total (Counter): Page lookups served from memory
//   - catalog_page_cache_misses_total (Counter): Page lookups that found nothing
//   - catalog_page_cache_evictions_total (Counter): Pages evicted by LRU
//   - catalog_page_cache_resident_pages (Gauge): Pages currently resident
//   - catalog_images_cached_total{kind} (Counter): Images stored in page entries
//
// Page Load Metrics (pkg/pagination):
//   - catalog_page_loads_total{result} (Counter): Page fetches by result
//   - catalog_page_load_joins_total (Counter): Callers that joined an in-flight fetch
//   - catalog_pages_in_flight (Gauge): Pages being fetched
//   - catalog_page_load_duration_seconds (Histogram): Full page load duration
//
// Loader Metrics (pkg/loader):
//   - catalog_thumbnail_failures_total{reason} (Counter): Thumbnails skipped
//   - catalog_image_loads_total{result} (Counter): Image loads by result
//   - catalog_page_items (Histogram): Items per fetched page
//
// Upstream Metrics (pkg/client):
//   - catalog_upstream_requests_total{kind, status} (Counter): Requests by kind and status
//   - catalog_upstream_request_duration_seconds{kind} (Histogram): Request duration
//   - catalog_upstream_errors_total{class} (Counter): Errors by class
//   - catalog_retries_total{error_class} (Counter): Retry attempts
//   - catalog_retry_backoff_seconds{error_class} (Histogram): Backoff durations
//   - catalog_retry_exhausted_total{error_class} (Counter): Retries exhausted
//
// Worker Pool Metrics (pkg/workerpool):
//   - catalog_pool_tasks_total{outcome} (Counter): Tasks accepted, rejected or skipped
//   - catalog_pool_queue_depth (Gauge): Tasks waiting for a worker
//   - catalog_pool_busy_workers (Gauge): Workers executing a task
//
// Quota Metrics (pkg/ratelimit):
//   - catalog_upstream_quota_remaining (Gauge): Upstream calls left in window
//   - catalog_upstream_quota_blocks_total (Counter): Requests blocked locally
//   - catalog_upstream_quota_throttles_total (Counter): Requests throttled
//
// Example Prometheus Queries:
//
//   # Page Cache Hit Rate
//   sum(rate(catalog_page_cache_hits_total[5m])) /
//   (sum(rate(catalog_page_cache_hits_total[5m])) + sum(rate(catalog_page_cache_misses_total[5m])))
//
//   # Deduplicated Loads
//   rate(catalog_page_load_joins_total[5m])
//
//   # Pool Rejections
//   rate(catalog_pool_tasks_total{outcome="rejected"}[5m])
//
//   # P95 Page Load Latency
//   histogram_quantile(0.95, rate(catalog_page_load_duration_seconds_bucket[5m]))
