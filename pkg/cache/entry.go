package cache

import (
	"sync"
	"time"
)

// Item is one record of an upstream page.
type Item struct {
	// Index is the global index: page number * page size + offset in page.
	Index int `json:"index"`

	ItemID           int64   `json:"itemId"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"shortDescription"`
	LongDescription  string  `json:"longDescription"`
	SalePrice        float64 `json:"salePrice"`
	CustomerRating   string  `json:"customerRating"`
	Stock            string  `json:"stock"`

	// Image URLs (absolute)
	ThumbnailImage string `json:"thumbnailImage"`
	MediumImage    string `json:"mediumImage"`
	LargeImage     string `json:"largeImage"`
}

// PageEntry is a cached upstream page with the images fetched for its items.
// The item list never changes after construction; images may be added
// concurrently through SetImage.
type PageEntry struct {
	// PageNumber is the zero-based page number.
	PageNumber int

	// FetchedAt is when the page body was downloaded.
	FetchedAt time.Time

	items []Item

	mu     sync.RWMutex
	images map[ImageKey]*Image
}

// NewPageEntry creates an entry for the given page. The items slice is owned
// by the entry afterwards.
func NewPageEntry(pageNumber int, items []Item) *PageEntry {
	return &PageEntry{
		PageNumber: pageNumber,
		FetchedAt:  time.Now(),
		items:      items,
		images:     make(map[ImageKey]*Image),
	}
}

// Len returns the number of items in the page.
func (e *PageEntry) Len() int {
	return len(e.items)
}

// Item returns a copy of the item at the given offset in the page.
func (e *PageEntry) Item(offset int) (Item, bool) {
	if offset < 0 || offset >= len(e.items) {
		return Item{}, false
	}
	return e.items[offset], true
}

// Items returns a copy of the page's items.
func (e *PageEntry) Items() []Item {
	out := make([]Item, len(e.items))
	copy(out, e.items)
	return out
}

// Image returns the image stored under key.
func (e *PageEntry) Image(key ImageKey) (*Image, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	img, ok := e.images[key]
	return img, ok
}

// SetImage stores an image under key, replacing any previous one.
func (e *PageEntry) SetImage(key ImageKey, img *Image) {
	if img == nil {
		return
	}
	e.mu.Lock()
	e.images[key] = img
	e.mu.Unlock()

	ImagesCached.WithLabelValues(string(key.Kind)).Inc()
}

// ImageCount returns the number of stored images of the given kind.
func (e *PageEntry) ImageCount(kind ImageKind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for key := range e.images {
		if key.Kind == kind {
			n++
		}
	}
	return n
}
