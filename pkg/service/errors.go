package service

import (
	"errors"

	"github.com/Sternrassler/catalog-cache/pkg/loader"
	"github.com/Sternrassler/catalog-cache/pkg/pagination"
	"github.com/Sternrassler/catalog-cache/pkg/ratelimit"
	"github.com/Sternrassler/catalog-cache/pkg/workerpool"
)

var (
	// ErrRangeTooWide is returned when a range spans more than two pages.
	ErrRangeTooWide = errors.New("range spans more than two pages")

	// ErrInvalidRange is returned for negative or inverted ranges.
	ErrInvalidRange = errors.New("invalid range")

	// ErrPageNotLoaded is returned when the page holding an index is not resident.
	ErrPageNotLoaded = errors.New("page not loaded")

	// ErrItemNotFound is returned when an index is past the end of its page.
	ErrItemNotFound = errors.New("item not found")

	// ErrClosed is returned by operations on a closed service.
	ErrClosed = errors.New("service closed")
)

// Errors from lower layers that callers may need to inspect.
var (
	ErrPageURLUnknown = pagination.ErrPageURLUnknown
	ErrMalformedPage  = loader.ErrMalformedPage
	ErrImageURLEmpty  = loader.ErrImageURLEmpty
	ErrOverloaded     = workerpool.ErrOverloaded
	ErrQuotaExhausted = ratelimit.ErrQuotaExhausted
)
