package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	thumbnailFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_thumbnail_failures_total",
		Help: "Thumbnails skipped during page materialization by reason",
	}, []string{"reason"})

	imageLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_image_loads_total",
		Help: "Image loads by result",
	}, []string{"result"})

	pageItemsTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_page_items",
		Help:    "Number of items per fetched page",
		Buckets: []float64{0, 10, 25, 50, 100, 200, 500},
	})
)
