// Package testutil provides a mock catalog upstream for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream endpoint.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Delay      time.Duration

	// Gate, when set, holds the response until it is closed or the
	// request is cancelled.
	Gate <-chan struct{}
}

// PageItem is the upstream JSON shape of one catalog item.
type PageItem struct {
	ItemID           int64   `json:"itemId"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"shortDescription,omitempty"`
	LongDescription  string  `json:"longDescription,omitempty"`
	SalePrice        float64 `json:"salePrice"`
	CustomerRating   string  `json:"customerRating,omitempty"`
	Stock            string  `json:"stock,omitempty"`
	ThumbnailImage   string  `json:"thumbnailImage"`
	MediumImage      string  `json:"mediumImage"`
	LargeImage       string  `json:"largeImage,omitempty"`
}

// MockUpstream is a configurable mock catalog API.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
}

// NewMockUpstream creates and starts a mock upstream.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Gate != nil {
			select {
			case <-resp.Gate:
			case <-r.Context().Done():
				return
			}
		}
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if len(resp.Body) > 0 {
			w.Write(resp.Body)
		}
	})
}

// RequestCount returns the total number of requests served.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestCountFor returns the number of requests for one path.
func (m *MockUpstream) RequestCountFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// PagePath is the relative URL of catalog page n.
func PagePath(n int) string {
	return fmt.Sprintf("/catalog/%d", n)
}

// ThumbnailPath is the path of the thumbnail of item i on page n.
func ThumbnailPath(n, i int) string {
	return fmt.Sprintf("/img/%d/%d/thumb.png", n, i)
}

// MediumPath is the path of the medium image of item i on page n.
func MediumPath(n, i int) string {
	return fmt.Sprintf("/img/%d/%d/medium.png", n, i)
}

// CatalogOptions shapes the catalog served by SetCatalog.
type CatalogOptions struct {
	Pages    int
	PageSize int

	// PageDelay and PageGate apply to every page response.
	PageDelay time.Duration
	PageGate  <-chan struct{}
}

// SetCatalog serves Pages pages of PageSize items at PagePath(n). Every item
// links a PNG thumbnail and medium image on this server. The last page
// reports no nextPage.
func (m *MockUpstream) SetCatalog(opts CatalogOptions) {
	thumb := PNG(4, 4)
	medium := PNG(16, 16)

	for n := 0; n < opts.Pages; n++ {
		items := make([]PageItem, opts.PageSize)
		for i := range items {
			items[i] = PageItem{
				ItemID:         int64(n*opts.PageSize + i + 1),
				Name:           fmt.Sprintf("Item %d", n*opts.PageSize+i),
				SalePrice:      float64(i) + 0.99,
				Stock:          "Available",
				ThumbnailImage: m.URL() + ThumbnailPath(n, i),
				MediumImage:    m.URL() + MediumPath(n, i),
			}
			m.SetResponse(ThumbnailPath(n, i), ImageResponse(thumb))
			m.SetResponse(MediumPath(n, i), ImageResponse(medium))
		}

		next := ""
		if n+1 < opts.Pages {
			next = PagePath(n + 1)
		}

		resp := JSONResponse(PageBody(next, items...))
		resp.Delay = opts.PageDelay
		resp.Gate = opts.PageGate
		m.SetResponse(PagePath(n), resp)
	}
}

// PageBody renders an upstream page. An empty next omits nextPage.
func PageBody(next string, items ...PageItem) []byte {
	if items == nil {
		items = []PageItem{}
	}
	body := struct {
		Items    []PageItem `json:"items"`
		NextPage string     `json:"nextPage,omitempty"`
	}{Items: items, NextPage: next}

	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return data
}

// JSONResponse is a 200 response with quota headers and a JSON body.
func JSONResponse(body []byte) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "100",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// ImageResponse is a 200 response carrying PNG bytes.
func ImageResponse(data []byte) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": "image/png"},
	}
}

// ServerErrorResponse is a 500 response.
func ServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       []byte(`{"error": "Internal server error"}`),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// RateLimitResponse is a 429 response with an exhausted quota.
func RateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       []byte(`{"error": "Rate limit exceeded"}`),
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "30",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// PNG encodes a solid w x h image.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x80, B: 0xd0, A: 0xff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
