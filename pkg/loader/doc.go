// Package loader materializes upstream catalog pages.
//
// PageFetcher downloads one page, parses its items and fetches every item's
// thumbnail concurrently before handing back a complete cache.PageEntry.
// ImageLoader downloads and validates a single image. Both run their network
// work on the upstream client's worker pool.
package loader
