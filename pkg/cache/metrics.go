package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page lookups served from memory
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_page_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	// CacheMisses tracks page lookups that found nothing
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_page_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// CacheEvictions tracks pages dropped to stay within capacity
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_page_cache_evictions_total",
			Help: "Total number of pages evicted from the page cache",
		},
	)

	// ResidentPages tracks the number of cached pages
	ResidentPages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_page_cache_resident_pages",
			Help: "Current number of pages held in the page cache",
		},
	)

	// ImagesCached tracks images stored into page entries by kind
	ImagesCached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_images_cached_total",
			Help: "Total number of images stored in page entries",
		},
		[]string{"kind"}, // "thumbnail", "medium"
	)
)
