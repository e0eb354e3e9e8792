// Package ratelimit tracks the upstream API's request quota and gates
// requests before it runs out. It reads the X-RateLimit-Remaining and
// X-RateLimit-Reset response headers and keeps the state in Redis so every
// proxy replica sharing an API key sees the same budget.
package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrQuotaExhausted is returned when the remaining upstream quota is below
// the critical threshold.
var ErrQuotaExhausted = errors.New("upstream quota exhausted")

// Response headers carrying quota information.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Redis keys for quota state storage.
const (
	RedisKeyRemaining      = "catalog:quota:remaining"
	RedisKeyResetTimestamp = "catalog:quota:reset_timestamp"
	RedisKeyLastUpdate     = "catalog:quota:last_update"
)

// Thresholds for quota decisions.
const (
	// QuotaThresholdCritical blocks all requests below this many remaining calls.
	QuotaThresholdCritical = 5

	// QuotaThresholdWarning throttles requests below this many remaining calls.
	QuotaThresholdWarning = 20

	// QuotaThresholdHealthy marks the quota healthy at or above this value.
	QuotaThresholdHealthy = 50
)

// QuotaState is the current upstream quota as last reported by the API.
type QuotaState struct {
	// Remaining is the number of calls left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the quota window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState is assumed until the upstream reports real numbers.
func DefaultState() *QuotaState {
	now := time.Now()
	return &QuotaState{
		Remaining:  100,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// ParseHeaders builds a state from response headers. It returns (nil, nil)
// when the response carries no quota headers.
func ParseHeaders(headers http.Header) (*QuotaState, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &QuotaState{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, nil
}

// IsStale returns true if the state is older than maxAge.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < QuotaThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < QuotaThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *QuotaState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaThresholdHealthy
}
