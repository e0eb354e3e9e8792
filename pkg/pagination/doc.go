// Package pagination coordinates loading of upstream pages.
//
// The upstream API is cursor-paginated: each page response carries the URL
// of the following page. URLTable records those URLs as pages complete
// (page 0 is seeded), so page N can only be loaded once page N-1 has been.
//
// Coordinator guarantees at most one fetch per page at any instant. Callers
// that ask for a page while it is being fetched wait on the same one-shot
// completion signal and all receive the same outcome:
//
//	coord := pagination.NewCoordinator(pages, urls, fetcher, logger)
//	if err := coord.EnsurePage(ctx, 3); err != nil {
//		// pagination.ErrPageURLUnknown, *client.HTTPError, ...
//	}
//
// A fetch runs under the coordinator's lifetime context, never a caller's:
// a caller that gives up stops waiting, the fetch still completes and the
// page is cached for the next request.
package pagination
