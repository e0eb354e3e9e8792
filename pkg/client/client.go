// Package client provides the upstream HTTP client for the catalog API:
// bounded concurrency, quota tracking, error classification and metrics.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/catalog-cache/pkg/logging"
	"github.com/Sternrassler/catalog-cache/pkg/ratelimit"
	"github.com/Sternrassler/catalog-cache/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upstream_requests_total",
		Help: "Total upstream requests by kind and status",
	}, []string{"kind", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by kind",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
	}, []string{"kind"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Kind labels a request for metrics and logs.
type Kind string

const (
	// KindPage is a page listing request.
	KindPage Kind = "page"

	// KindImage is an image request.
	KindImage Kind = "image"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is prepended to relative page URLs.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds each request including the body read.
	Timeout time.Duration

	// MaxBodyBytes caps response bodies.
	MaxBodyBytes int64

	// Concurrency
	Workers   int // Max parallel requests
	QueueSize int // Max requests waiting for a worker

	// Tracker gates requests on upstream quota (optional).
	Tracker *ratelimit.Tracker
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	pool := workerpool.DefaultConfig()
	return Config{
		BaseURL:      baseURL,
		UserAgent:    userAgent,
		Timeout:      20 * time.Second,
		MaxBodyBytes: 16 << 20,
		Workers:      pool.Workers,
		QueueSize:    pool.QueueSize,
	}
}

// Client performs upstream GETs on a bounded worker pool.
type Client struct {
	httpClient *http.Client
	pool       *workerpool.Pool
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger

	// ctx is cancelled by Close to abort outstanding requests
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new upstream client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig(cfg.BaseURL, cfg.UserAgent).MaxBodyBytes
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := workerpool.New(workerpool.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	}, logging.WithComponent(logger, logging.ComponentWorkerPool))
	logger = logging.WithComponent(logger, logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pool:    pool,
		tracker: cfg.Tracker,
		config:  cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Fetch GETs url on a pool worker and passes the body to decode, which
// also runs on the worker. The request is aborted if ctx ends or the client
// is closed. Fails with workerpool.ErrOverloaded when the pool queue is full.
func (c *Client) Fetch(ctx context.Context, kind Kind, url string, decode func(body []byte) error) error {
	return c.pool.Do(ctx, func(ctx context.Context) error {
		body, err := c.get(ctx, kind, url)
		if err != nil {
			return err
		}
		if decode == nil {
			return nil
		}
		return decode(body)
	})
}

// Get returns the body of url.
func (c *Client) Get(ctx context.Context, kind Kind, url string) ([]byte, error) {
	var body []byte
	err := c.Fetch(ctx, kind, url, func(b []byte) error {
		body = b
		return nil
	})
	return body, err
}

// Workers returns the number of requests the client runs at once.
func (c *Client) Workers() int {
	return c.pool.Workers()
}

// PageURL resolves a relative page URL against the base URL.
func (c *Client) PageURL(relative string) string {
	return c.config.BaseURL + relative
}

// get executes one request. Runs on a pool worker.
func (c *Client) get(ctx context.Context, kind Kind, url string) ([]byte, error) {
	// Tie the request to the client lifetime as well as the caller
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(string(kind)).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check upstream quota
	if c.tracker != nil {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Quota check failed - allowing request")
		} else if !allowed {
			c.logger.Warn().
				Str("kind", string(kind)).
				Str("url", url).
				Msg("Request blocked by quota tracker")
			upstreamRequestsTotal.WithLabelValues(string(kind), "quota_blocked").Inc()
			upstreamErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, ratelimit.ErrQuotaExhausted
		}
	}

	// Step 2: Build request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &HTTPError{URL: url, Class: ErrorClassClient, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if kind == KindPage {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Debug().
		Str("kind", string(kind)).
		Str("url", url).
		Msg("Executing upstream request")

	// Step 3: Execute
	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(string(kind), "network_error").Inc()
		c.logger.Warn().Err(err).Str("url", url).Msg("HTTP request failed")
		return nil, &HTTPError{URL: url, Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	// Step 4: Update quota from headers
	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	upstreamRequestsTotal.WithLabelValues(string(kind), fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// Step 5: Handle HTTP errors
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("kind", string(kind)).
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream request error")

		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Class: errClass}
	}

	// Step 6: Read body
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Class: ErrorClassNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Class: ErrorClassClient, Err: ErrBodyTooLarge}
	}

	return body, nil
}

// Close aborts outstanding requests and stops the worker pool.
func (c *Client) Close() error {
	c.cancel()
	c.pool.Close()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
