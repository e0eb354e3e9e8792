package pagination

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-cache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for page loading.
var (
	pageLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_page_loads_total",
		Help: "Total upstream page fetches by result",
	}, []string{"result"})

	pageLoadJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_page_load_joins_total",
		Help: "Total callers that joined an in-flight page fetch instead of starting one",
	})

	pagesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_pages_in_flight",
		Help: "Number of pages currently being fetched",
	})

	pageLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_page_load_duration_seconds",
		Help:    "Duration of a full page load including thumbnail fan-in",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})
)

// PageFetcher builds a page entry from the upstream API.
type PageFetcher interface {
	// FetchPage downloads the page at url and returns the complete entry and
	// the URL of the following page ("" if there is none).
	FetchPage(ctx context.Context, pageNumber int, url string) (*cache.PageEntry, string, error)
}

// flight is the one-shot completion signal of a running fetch.
// err is written once before done is closed.
type flight struct {
	done chan struct{}
	err  error
}

// Coordinator ensures pages are resident, deduplicating concurrent fetches.
type Coordinator struct {
	pages   *cache.PageCache
	urls    *URLTable
	fetcher PageFetcher
	logger  zerolog.Logger

	// ctx bounds every fetch; cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inFlight map[int]*flight
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator over the given cache and URL table.
func NewCoordinator(pages *cache.PageCache, urls *URLTable, fetcher PageFetcher, logger zerolog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		pages:    pages,
		urls:     urls,
		fetcher:  fetcher,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[int]*flight),
	}
}

// EnsurePage makes a page resident. It returns nil immediately on a cache
// hit, joins a running fetch for the page if there is one, or starts a new
// fetch. Every caller waiting on the same fetch receives its outcome.
//
// If ctx ends first, EnsurePage returns ctx.Err() while the fetch continues.
func (c *Coordinator) EnsurePage(ctx context.Context, pageNumber int) error {
	if _, ok := c.pages.Get(pageNumber); ok {
		c.logger.Debug().Int("page", pageNumber).Msg("Page already loaded")
		return nil
	}

	url, err := c.urls.Lookup(pageNumber)
	if err != nil {
		c.logger.Warn().Int("page", pageNumber).Msg("Page url not found")
		return err
	}

	c.mu.Lock()
	// The fetch may have completed between the lookup above and the lock.
	if c.pages.Contains(pageNumber) {
		c.mu.Unlock()
		return nil
	}
	f, joined := c.inFlight[pageNumber]
	if !joined {
		if err := c.ctx.Err(); err != nil {
			c.mu.Unlock()
			return err
		}
		f = &flight{done: make(chan struct{})}
		c.inFlight[pageNumber] = f
		pagesInFlight.Inc()
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if joined {
		pageLoadJoinsTotal.Inc()
		c.logger.Debug().
			Int("page", pageNumber).
			Msg("Page already being loaded - waiting for completion")
	} else {
		go c.run(pageNumber, url, f)
	}

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run performs one fetch and broadcasts its outcome.
func (c *Coordinator) run(pageNumber int, url string, f *flight) {
	defer c.wg.Done()
	start := time.Now()

	entry, nextURL, err := c.fetcher.FetchPage(c.ctx, pageNumber, url)
	if err == nil {
		// Install before signalling: no waiter may observe a missing page.
		c.pages.Add(pageNumber, entry)
		if c.urls.Set(pageNumber+1, nextURL) {
			c.logger.Debug().
				Int("page", pageNumber+1).
				Str("url", nextURL).
				Msg("Next page url discovered")
		}
	}

	c.mu.Lock()
	delete(c.inFlight, pageNumber)
	f.err = err
	close(f.done)
	c.mu.Unlock()

	pagesInFlight.Dec()
	pageLoadDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		pageLoadsTotal.WithLabelValues("failure").Inc()
		c.logger.Error().
			Err(err).
			Int("page", pageNumber).
			Str("url", url).
			Msg("Page load failed")
		return
	}

	pageLoadsTotal.WithLabelValues("success").Inc()
	c.logger.Info().
		Int("page", pageNumber).
		Int("items", entry.Len()).
		Int("thumbnails", entry.ImageCount(cache.KindThumbnail)).
		Dur("duration", time.Since(start)).
		Msg("Page load complete")
}

// IsLoading reports whether a fetch is running for the page.
func (c *Coordinator) IsLoading(pageNumber int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[pageNumber]
	return ok
}

// AnyLoading reports whether any fetch is running.
func (c *Coordinator) AnyLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight) > 0
}

// InFlight returns the pages currently being fetched in ascending order.
func (c *Coordinator) InFlight() []int {
	c.mu.Lock()
	pages := make([]int, 0, len(c.inFlight))
	for page := range c.inFlight {
		pages = append(pages, page)
	}
	c.mu.Unlock()

	sort.Ints(pages)
	return pages
}

// Close cancels running fetches and waits for them to finish. Waiting
// callers receive the fetch's (cancellation) error; later calls that would
// start a fetch fail with context.Canceled.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}
