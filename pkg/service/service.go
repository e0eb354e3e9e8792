// Package service is the catalog cache façade. It serves items and their
// images by global index from a bounded set of resident upstream pages,
// fetching each page at most once at a time.
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/catalog-cache/pkg/cache"
	"github.com/Sternrassler/catalog-cache/pkg/client"
	"github.com/Sternrassler/catalog-cache/pkg/loader"
	"github.com/Sternrassler/catalog-cache/pkg/logging"
	"github.com/Sternrassler/catalog-cache/pkg/pagination"
	"github.com/Sternrassler/catalog-cache/pkg/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Service serves catalog items backed by the paged upstream API.
// All methods are safe for concurrent use.
type Service struct {
	cfg    Config
	logger zerolog.Logger

	client *client.Client
	pages  *cache.PageCache
	urls   *pagination.URLTable
	coord  *pagination.Coordinator
	images *loader.ImageLoader

	// medium coalesces concurrent fetches of the same medium image
	medium singleflight.Group

	// ctx bounds on-demand image fetches; cancelled by Close
	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
}

// Status is a point-in-time view of the service.
type Status struct {
	ResidentPages []int `json:"resident_pages"`
	InFlight      []int `json:"in_flight"`
	KnownPages    int   `json:"known_pages"`
	PageSize      int   `json:"page_size"`
	MaxPages      int   `json:"max_pages"`
}

// New creates a service. It does not contact the upstream.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger

	var tracker *ratelimit.Tracker
	if cfg.Redis != nil {
		tracker = ratelimit.NewTracker(cfg.Redis, logging.WithComponent(logger, logging.ComponentQuota))
	}

	c, err := client.New(client.Config{
		BaseURL:      cfg.BaseURL,
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.RequestTimeout,
		MaxBodyBytes: client.DefaultConfig(cfg.BaseURL, cfg.UserAgent).MaxBodyBytes,
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		Tracker:      tracker,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	pages, err := cache.NewPageCache(cfg.MaxPages, logging.WithComponent(logger, logging.ComponentPageCache))
	if err != nil {
		c.Close()
		return nil, err
	}

	urls := pagination.NewURLTable(cfg.FirstPageURL)
	images := loader.NewImageLoader(c, logger)
	fetcher := loader.NewPageFetcher(c, images, cfg.PageSize, logger)
	coord := pagination.NewCoordinator(pages, urls, fetcher, logging.WithComponent(logger, logging.ComponentCoordinator))

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		cfg:    cfg,
		logger: logging.WithComponent(logger, logging.ComponentService),
		client: c,
		pages:  pages,
		urls:   urls,
		coord:  coord,
		images: images,
		ctx:    ctx,
		cancel: cancel,
	}

	s.logger.Info().
		Str("base_url", cfg.BaseURL).
		Int("page_size", cfg.PageSize).
		Int("max_pages", cfg.MaxPages).
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Bool("quota_tracking", tracker != nil).
		Msg("Catalog service created")

	return s, nil
}

// pageRange maps an inclusive index range to its first and last page.
func (s *Service) pageRange(from, to int) (int, int, error) {
	if from < 0 || to < from {
		return 0, 0, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, from, to)
	}
	return from / s.cfg.PageSize, to / s.cfg.PageSize, nil
}

// IsLoaded reports whether every page covering [from, to] is resident.
// It does not count as a cache access.
func (s *Service) IsLoaded(from, to int) bool {
	begin, end, err := s.pageRange(from, to)
	if err != nil {
		return false
	}
	for page := begin; page <= end; page++ {
		if !s.pages.Contains(page) {
			return false
		}
	}
	return true
}

// IsLoading reports whether every page covering [from, to] is being fetched.
func (s *Service) IsLoading(from, to int) bool {
	begin, end, err := s.pageRange(from, to)
	if err != nil {
		return false
	}
	for page := begin; page <= end; page++ {
		if !s.coord.IsLoading(page) {
			return false
		}
	}
	return true
}

// AnyLoading reports whether any page fetch is running.
func (s *Service) AnyLoading() bool {
	return s.coord.AnyLoading()
}

// LoadRange makes the pages covering [from, to] resident. A range may span
// at most two adjacent pages. The second page is only loaded if the first
// succeeded. Errors from the page fetch are returned unchanged.
func (s *Service) LoadRange(ctx context.Context, from, to int) error {
	if s.closed.Load() {
		return ErrClosed
	}

	begin, end, err := s.pageRange(from, to)
	if err != nil {
		return err
	}
	if end-begin > 1 {
		return fmt.Errorf("%w: [%d, %d] covers pages %d-%d", ErrRangeTooWide, from, to, begin, end)
	}

	if err := s.coord.EnsurePage(ctx, begin); err != nil {
		return err
	}
	if end != begin {
		return s.coord.EnsurePage(ctx, end)
	}
	return nil
}

// LoadRangeWithRetry is LoadRange retried with backoff on upstream errors.
// A zero cfg picks the schedule from the class of the first failure.
func (s *Service) LoadRangeWithRetry(ctx context.Context, from, to int, cfg client.RetryConfig) error {
	return client.RetryWithConfig(ctx, cfg, func() error {
		return s.LoadRange(ctx, from, to)
	}, client.ClassifyError)
}

// entry returns the resident page holding index and the index's offset in it.
// Counts as a cache access.
func (s *Service) entry(index int) (*cache.PageEntry, int, error) {
	if index < 0 {
		return nil, 0, fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}

	page := index / s.cfg.PageSize
	e, ok := s.pages.Get(page)
	if !ok {
		return nil, 0, fmt.Errorf("%w: page %d", ErrPageNotLoaded, page)
	}

	offset := index % s.cfg.PageSize
	if offset >= e.Len() {
		return nil, 0, fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}
	return e, offset, nil
}

// Item returns the item at index if its page is resident.
func (s *Service) Item(index int) (cache.Item, bool) {
	e, offset, err := s.entry(index)
	if err != nil {
		return cache.Item{}, false
	}
	return e.Item(offset)
}

// Thumbnail returns the cached thumbnail of the item at index. It never
// touches the network.
func (s *Service) Thumbnail(index int) (*cache.Image, bool) {
	e, offset, err := s.entry(index)
	if err != nil {
		return nil, false
	}
	return e.Image(cache.ImageKey{Offset: offset, Kind: cache.KindThumbnail})
}

// MediumImage returns the medium image of the item at index, fetching and
// caching it on first use. Concurrent requests for the same image share one
// fetch; a caller whose ctx ends stops waiting without cancelling it.
func (s *Service) MediumImage(ctx context.Context, index int) (*cache.Image, error) {
	e, offset, err := s.entry(index)
	if err != nil {
		return nil, err
	}

	key := cache.ImageKey{Offset: offset, Kind: cache.KindMedium}
	if img, ok := e.Image(key); ok {
		return img, nil
	}

	if s.closed.Load() {
		return nil, ErrClosed
	}

	item, _ := e.Item(offset)
	if item.MediumImage == "" {
		return nil, fmt.Errorf("%w: index %d", ErrImageURLEmpty, index)
	}

	ch := s.medium.DoChan(strconv.Itoa(e.PageNumber)+"/"+key.String(), func() (interface{}, error) {
		img, err := s.images.Load(s.ctx, item.MediumImage)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int("index", index).
				Str("url", item.MediumImage).
				Msg("Medium image load failed")
			return nil, err
		}
		e.SetImage(key, img)
		return img, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.Image), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResidentPages returns the resident page numbers in ascending order.
func (s *Service) ResidentPages() []int {
	return s.pages.Pages()
}

// Status returns a snapshot of the cache and loader state.
func (s *Service) Status() Status {
	return Status{
		ResidentPages: s.pages.Pages(),
		InFlight:      s.coord.InFlight(),
		KnownPages:    s.urls.Len(),
		PageSize:      s.cfg.PageSize,
		MaxPages:      s.cfg.MaxPages,
	}
}

// PageSize returns the configured page size.
func (s *Service) PageSize() int {
	return s.cfg.PageSize
}

// Close cancels outstanding upstream requests and stops the worker pool.
// Further loads fail with ErrClosed. Resident pages remain readable.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.coord.Close()
		s.client.Close()
		s.logger.Info().Msg("Catalog service closed")
	})
	return nil
}
