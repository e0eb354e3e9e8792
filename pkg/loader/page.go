package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-cache/pkg/cache"
	"github.com/Sternrassler/catalog-cache/pkg/client"
	"github.com/Sternrassler/catalog-cache/pkg/logging"
	"github.com/Sternrassler/catalog-cache/pkg/workerpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrMalformedPage is returned when a page body has no usable item list.
var ErrMalformedPage = errors.New("malformed page")

// pageBody is the upstream page envelope.
type pageBody struct {
	Items    json.RawMessage `json:"items"`
	NextPage string          `json:"nextPage"`
}

// PageFetcher downloads and materializes one page.
type PageFetcher struct {
	client   *client.Client
	images   *ImageLoader
	pageSize int
	logger   zerolog.Logger
}

// NewPageFetcher creates a page fetcher. pageSize is used to compute the
// global index of every item.
func NewPageFetcher(c *client.Client, images *ImageLoader, pageSize int, logger zerolog.Logger) *PageFetcher {
	return &PageFetcher{
		client:   c,
		images:   images,
		pageSize: pageSize,
		logger:   logging.WithComponent(logger, logging.ComponentPageFetcher),
	}
}

// FetchPage performs one GET of the page at url (relative to the base URL),
// loads every thumbnail and returns the entry with the next page URL. The
// next URL is empty on the last page. Thumbnail failures are logged and
// skipped; any other failure fails the page.
func (f *PageFetcher) FetchPage(ctx context.Context, pageNumber int, url string) (*cache.PageEntry, string, error) {
	var (
		items []cache.Item
		next  string
	)

	err := f.client.Fetch(ctx, client.KindPage, f.client.PageURL(url), func(body []byte) error {
		var err error
		items, next, err = parsePage(body, pageNumber, f.pageSize)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	pageItemsTotal.Observe(float64(len(items)))
	entry := cache.NewPageEntry(pageNumber, items)

	loaded := f.loadThumbnails(ctx, entry, items)

	f.logger.Debug().
		Int("page", pageNumber).
		Int("items", len(items)).
		Int("thumbnails", loaded).
		Str("next_page", next).
		Msg("Page materialized")

	return entry, next, nil
}

// loadThumbnails fetches every thumbnail and waits for all of them. At most
// one thumbnail per pool worker is submitted at a time so a page never
// overflows the pool queue with its own preload. Returns the number stored.
func (f *PageFetcher) loadThumbnails(ctx context.Context, entry *cache.PageEntry, items []cache.Item) int {
	var g errgroup.Group
	g.SetLimit(f.client.Workers())

	for offset, item := range items {
		offset, url := offset, item.ThumbnailImage
		g.Go(func() error {
			img, err := f.images.Load(ctx, url)
			if err != nil {
				reason := thumbnailFailureReason(err)
				thumbnailFailuresTotal.WithLabelValues(reason).Inc()
				f.logger.Warn().
					Err(err).
					Int("page", entry.PageNumber).
					Int("offset", offset).
					Str("reason", reason).
					Msg("Thumbnail skipped")
				return nil
			}
			entry.SetImage(cache.ImageKey{Offset: offset, Kind: cache.KindThumbnail}, img)
			return nil
		})
	}

	// Goroutines never return errors; failures are per item
	_ = g.Wait()

	return entry.ImageCount(cache.KindThumbnail)
}

// parsePage decodes a page body into items with global indices.
func parsePage(body []byte, pageNumber, pageSize int) ([]cache.Item, string, error) {
	var pb pageBody
	if err := json.Unmarshal(body, &pb); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	raw := bytes.TrimSpace(pb.Items)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, "", fmt.Errorf("%w: items missing", ErrMalformedPage)
	}
	if raw[0] != '[' {
		return nil, "", fmt.Errorf("%w: items is not an array", ErrMalformedPage)
	}

	var items []cache.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, "", fmt.Errorf("%w: decode items: %v", ErrMalformedPage, err)
	}

	for i := range items {
		items[i].Index = pageNumber*pageSize + i
	}

	return items, pb.NextPage, nil
}

func thumbnailFailureReason(err error) string {
	if errors.Is(err, ErrImageURLEmpty) {
		return "empty_url"
	}
	if errors.Is(err, cache.ErrImageDecode) {
		return "decode"
	}
	if class := client.ClassifyError(err); class != "" {
		return string(class)
	}
	if errors.Is(err, workerpool.ErrPoolClosed) {
		return "closed"
	}
	return "other"
}
