package pagination

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPageURLUnknown is returned when a page's URL has not been discovered
// yet, i.e. the previous page has never been loaded.
var ErrPageURLUnknown = errors.New("page url not yet known")

// URLTable maps page numbers to upstream URLs. It only grows.
type URLTable struct {
	mu   sync.RWMutex
	urls map[int]string
}

// NewURLTable creates a table seeded with the URL of page 0.
func NewURLTable(firstPageURL string) *URLTable {
	return &URLTable{
		urls: map[int]string{0: firstPageURL},
	}
}

// Get returns the URL for a page.
func (t *URLTable) Get(pageNumber int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	url, ok := t.urls[pageNumber]
	return url, ok
}

// Lookup is Get with an ErrPageURLUnknown error for missing pages.
func (t *URLTable) Lookup(pageNumber int) (string, error) {
	url, ok := t.Get(pageNumber)
	if !ok {
		return "", fmt.Errorf("%w: page %d", ErrPageURLUnknown, pageNumber)
	}
	return url, nil
}

// Set records the URL for a page. Existing entries are kept; a page URL
// never changes once discovered. Empty URLs are ignored.
func (t *URLTable) Set(pageNumber int, url string) bool {
	if url == "" || pageNumber < 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.urls[pageNumber]; exists {
		return false
	}
	t.urls[pageNumber] = url
	return true
}

// Len returns the number of known page URLs.
func (t *URLTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.urls)
}
