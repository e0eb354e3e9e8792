// Package cache provides the in-memory page cache for the catalog service.
//
// The cache holds a bounded number of fully built pages:
//
// - PageEntry owns the parsed item list of one upstream page plus the
// decoded images fetched for it (thumbnails up front, medium images on demand)
// - PageCache is an LRU keyed by page number; adding a page beyond capacity
// evicts the least recently accessed one
// - Entries are inserted only once complete, so eviction can only ever drop
// immutable pages
// - Prometheus metrics for hits, misses, evictions and resident pages
//
// # Basic Usage
//
//	pages, err := cache.NewPageCache(2, logger)
//	if err != nil {
//		return err
//	}
//
//	entry := cache.NewPageEntry(0, items)
//	entry.SetImage(cache.ImageKey{Offset: 0, Kind: cache.KindThumbnail}, img)
//	pages.Add(0, entry)
//
//	if entry, ok := pages.Get(0); ok {
//		item, _ := entry.Item(0)
//		fmt.Println(item.Name)
//	}
//
// # Access Semantics
//
// Get and Add refresh a page's recency. Contains, Peek and Pages do not, so
// diagnostic probes never change which page is evicted next.
//
// # Metrics
//
//   - catalog_page_cache_hits_total - Page lookups that found the page
//   - catalog_page_cache_misses_total - Page lookups that did not
//   - catalog_page_cache_evictions_total - Pages dropped for capacity
//   - catalog_page_cache_resident_pages - Pages currently held
//   - catalog_images_cached_total{kind} - Images stored into entries
package cache
