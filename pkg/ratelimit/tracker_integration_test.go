//go:build integration

package ratelimit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs one Redis container for the whole test and flushes it
// between subtests.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		rdb.Close()
		container.Terminate(ctx)
	})
	return rdb
}

func TestTracker_Integration(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	fresh := func(t *testing.T) *Tracker {
		t.Helper()
		if err := rdb.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("FlushDB() error = %v", err)
		}
		return NewTracker(rdb, logger)
	}

	t.Run("empty redis yields default state", func(t *testing.T) {
		state, err := fresh(t).GetState(ctx)
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if state.Remaining != 100 || !state.IsHealthy {
			t.Errorf("state = {Remaining: %d, IsHealthy: %v}, want {100, true}", state.Remaining, state.IsHealthy)
		}
	})

	t.Run("headers round trip through redis", func(t *testing.T) {
		tests := []struct {
			remaining string
			reset     string
			want      int
			healthy   bool
		}{
			{"90", "60", 90, true},
			{"15", "30", 15, false},
			{"2", "45", 2, false},
		}

		tracker := fresh(t)
		for _, tt := range tests {
			if err := tracker.UpdateFromHeaders(ctx, quotaHeaders(tt.remaining, tt.reset)); err != nil {
				t.Fatalf("UpdateFromHeaders(%s) error = %v", tt.remaining, err)
			}
			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Remaining != tt.want || state.IsHealthy != tt.healthy {
				t.Errorf("after %s/%s: {Remaining: %d, IsHealthy: %v}, want {%d, %v}",
					tt.remaining, tt.reset, state.Remaining, state.IsHealthy, tt.want, tt.healthy)
			}
		}
	})

	t.Run("keys expire after the window", func(t *testing.T) {
		tracker := fresh(t)
		if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("50", "120")); err != nil {
			t.Fatalf("UpdateFromHeaders() error = %v", err)
		}

		ttl, err := rdb.TTL(ctx, RedisKeyRemaining).Result()
		if err != nil {
			t.Fatalf("TTL() error = %v", err)
		}
		if ttl < 2*time.Minute || ttl > 3*time.Minute+5*time.Second {
			t.Errorf("TTL(%s) = %v, want about 3m", RedisKeyRemaining, ttl)
		}
	})

	t.Run("state is shared between trackers", func(t *testing.T) {
		writer := fresh(t)
		reader := NewTracker(rdb, logger)

		if err := writer.UpdateFromHeaders(ctx, quotaHeaders("3", "60")); err != nil {
			t.Fatalf("UpdateFromHeaders() error = %v", err)
		}

		allowed, err := reader.ShouldAllowRequest(ctx)
		if err != nil {
			t.Fatalf("ShouldAllowRequest() error = %v", err)
		}
		if allowed {
			t.Error("second tracker allowed a request under a critical quota")
		}
	})

	t.Run("throttle delays warning state", func(t *testing.T) {
		old := ThrottleDelay
		ThrottleDelay = 200 * time.Millisecond
		defer func() { ThrottleDelay = old }()

		tracker := fresh(t)
		if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("15", "60")); err != nil {
			t.Fatalf("UpdateFromHeaders() error = %v", err)
		}

		start := time.Now()
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
		}
		if d := time.Since(start); d < 150*time.Millisecond {
			t.Errorf("throttle duration = %v, want >= 200ms", d)
		}
	})

	t.Run("critical block lifts after reset", func(t *testing.T) {
		tracker := fresh(t)
		if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("3", "2")); err != nil {
			t.Fatalf("UpdateFromHeaders() error = %v", err)
		}

		if allowed, _ := tracker.ShouldAllowRequest(ctx); allowed {
			t.Fatal("ShouldAllowRequest() = true before reset, want false")
		}

		time.Sleep(3 * time.Second)

		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil {
			t.Fatalf("ShouldAllowRequest() error = %v", err)
		}
		if !allowed {
			t.Error("ShouldAllowRequest() = false after reset, want true")
		}
	})

	t.Run("reset clears shared state", func(t *testing.T) {
		tracker := fresh(t)
		if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("1", "60")); err != nil {
			t.Fatalf("UpdateFromHeaders() error = %v", err)
		}
		if err := tracker.Reset(ctx); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}

		n, err := rdb.Exists(ctx, RedisKeyRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if n != 0 {
			t.Errorf("%d quota keys remain after Reset", n)
		}
	})
}

