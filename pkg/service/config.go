package service

import (
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-cache/pkg/workerpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults
const (
	DefaultPageSize       = 100
	DefaultMaxPages       = 2
	DefaultRequestTimeout = 20 * time.Second
	DefaultUserAgent      = "catalog-cache/1.0"
)

// Config holds the service configuration.
type Config struct {
	// BaseURL is prepended to every page URL.
	BaseURL string

	// FirstPageURL is the relative URL of page 0.
	FirstPageURL string

	// PageSize is the number of items per upstream page.
	PageSize int

	// MaxPages bounds the number of resident pages.
	MaxPages int

	// Upstream concurrency
	Workers   int
	QueueSize int

	// RequestTimeout bounds every upstream request.
	RequestTimeout time.Duration

	// UserAgent header sent upstream.
	UserAgent string

	// Redis enables upstream quota tracking (optional).
	Redis *redis.Client

	Logger zerolog.Logger
}

// DefaultConfig returns the default configuration for a catalog at baseURL.
func DefaultConfig(baseURL, firstPageURL string) Config {
	return Config{
		BaseURL:        baseURL,
		FirstPageURL:   firstPageURL,
		PageSize:       DefaultPageSize,
		MaxPages:       DefaultMaxPages,
		Workers:        workerpool.DefaultConfig().Workers,
		QueueSize:      DefaultPageSize * DefaultMaxPages,
		RequestTimeout: DefaultRequestTimeout,
		UserAgent:      DefaultUserAgent,
		Logger:         log.Logger,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("base url is required")
	case c.FirstPageURL == "":
		return fmt.Errorf("first page url is required")
	case c.PageSize < 1:
		return fmt.Errorf("page size must be >= 1 (got %d)", c.PageSize)
	case c.MaxPages < 2:
		// A range may span two pages; both must stay resident
		return fmt.Errorf("max pages must be >= 2 (got %d)", c.MaxPages)
	case c.Workers < 1:
		return fmt.Errorf("workers must be >= 1 (got %d)", c.Workers)
	case c.QueueSize < 1:
		return fmt.Errorf("queue size must be >= 1 (got %d)", c.QueueSize)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request timeout must be > 0 (got %s)", c.RequestTimeout)
	case c.UserAgent == "":
		return fmt.Errorf("user-agent is required")
	}
	return nil
}
