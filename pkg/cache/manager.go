package cache

import (
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

// ErrInvalidCapacity indicates a page cache capacity below one.
var ErrInvalidCapacity = errors.New("page cache capacity must be >= 1")

// PageCache is a bounded LRU of page number to *PageEntry. It is safe for
// concurrent use.
type PageCache struct {
	lru      *lru.Cache
	capacity int
	logger   zerolog.Logger
}

// NewPageCache creates a page cache holding at most capacity pages.
func NewPageCache(capacity int, logger zerolog.Logger) (*PageCache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}

	pc := &PageCache{
		capacity: capacity,
		logger:   logger,
	}

	l, err := lru.NewWithEvict(capacity, pc.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	pc.lru = l

	return pc, nil
}

func (pc *PageCache) onEvict(key, value interface{}) {
	CacheEvictions.Inc()
	ResidentPages.Dec()
	pc.logger.Debug().Interface("page", key).Msg("Page evicted")
}

// Get returns the entry for a page and marks it as most recently used.
func (pc *PageCache) Get(pageNumber int) (*PageEntry, bool) {
	val, ok := pc.lru.Get(pageNumber)
	if !ok {
		CacheMisses.Inc()
		return nil, false
	}

	entry, ok := val.(*PageEntry)
	if !ok {
		CacheMisses.Inc()
		return nil, false
	}

	CacheHits.Inc()
	return entry, true
}

// Peek returns the entry for a page without touching its recency.
func (pc *PageCache) Peek(pageNumber int) (*PageEntry, bool) {
	val, ok := pc.lru.Peek(pageNumber)
	if !ok {
		return nil, false
	}
	entry, ok := val.(*PageEntry)
	return entry, ok
}

// Contains reports whether a page is resident without touching its recency.
func (pc *PageCache) Contains(pageNumber int) bool {
	return pc.lru.Contains(pageNumber)
}

// Add inserts a fully built entry, evicting the least recently used page if
// the cache is full. Re-adding a resident page replaces it.
func (pc *PageCache) Add(pageNumber int, entry *PageEntry) {
	if entry == nil {
		return
	}
	if !pc.lru.Contains(pageNumber) {
		ResidentPages.Inc()
	}
	if evicted := pc.lru.Add(pageNumber, entry); evicted {
		pc.logger.Debug().
			Int("page", pageNumber).
			Int("capacity", pc.capacity).
			Msg("Page added with eviction")
	}
}

// Len returns the number of resident pages.
func (pc *PageCache) Len() int {
	return pc.lru.Len()
}

// Capacity returns the maximum number of resident pages.
func (pc *PageCache) Capacity() int {
	return pc.capacity
}

// Pages returns resident page numbers in ascending order.
func (pc *PageCache) Pages() []int {
	keys := pc.lru.Keys()
	pages := make([]int, 0, len(keys))
	for _, k := range keys {
		if n, ok := k.(int); ok {
			pages = append(pages, n)
		}
	}
	sort.Ints(pages)
	return pages
}
