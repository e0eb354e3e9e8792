//go:build integration

package integration

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-cache/internal/testutil"
	"github.com/Sternrassler/catalog-cache/pkg/client"
	"github.com/Sternrassler/catalog-cache/pkg/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newService(t *testing.T, mock *testutil.MockUpstream, redisClient *redis.Client) *service.Service {
	t.Helper()

	cfg := service.DefaultConfig(mock.URL(), testutil.PagePath(0))
	cfg.PageSize = 10
	cfg.MaxPages = 2
	cfg.RequestTimeout = 5 * time.Second
	cfg.Redis = redisClient
	cfg.Logger = zerolog.New(io.Discard)

	svc, err := service.New(cfg)
	if err != nil {
		t.Fatalf("service.New() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// TestScrollThroughCatalog loads a catalog front to back with quota tracking
// enabled and checks eviction and quota bookkeeping along the way.
func TestScrollThroughCatalog(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetCatalog(testutil.CatalogOptions{Pages: 3, PageSize: 10})

	svc := newService(t, mock, redisClient)
	ctx := context.Background()

	windows := [][2]int{{0, 9}, {5, 14}, {15, 24}, {25, 29}}
	for _, w := range windows {
		if err := svc.LoadRange(ctx, w[0], w[1]); err != nil {
			t.Fatalf("LoadRange(%d, %d) error = %v", w[0], w[1], err)
		}
		for i := w[0]; i <= w[1]; i++ {
			if _, ok := svc.Item(i); !ok {
				t.Errorf("Item(%d) missing after LoadRange(%d, %d)", i, w[0], w[1])
			}
		}
	}

	for n := 0; n < 3; n++ {
		if got := mock.RequestCountFor(testutil.PagePath(n)); got != 1 {
			t.Errorf("page %d requests = %d, want 1", n, got)
		}
	}

	if got := svc.ResidentPages(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("ResidentPages() = %v, want [1 2]", got)
	}

	// Every thumbnail of a resident page was fetched with its page
	for i := 10; i < 30; i++ {
		if _, ok := svc.Thumbnail(i); !ok {
			t.Errorf("Thumbnail(%d) missing", i)
		}
	}

	remaining, err := redisClient.Get(ctx, "catalog:quota:remaining").Int()
	if err != nil {
		t.Fatalf("read quota from redis: %v", err)
	}
	if remaining != 100 {
		t.Errorf("quota remaining = %d, want 100", remaining)
	}
}

// TestQuotaExhaustionStopsLoads checks that an exhausted upstream quota
// blocks further page loads without reaching the upstream.
func TestQuotaExhaustionStopsLoads(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetCatalog(testutil.CatalogOptions{Pages: 2, PageSize: 10})
	mock.SetResponse(testutil.PagePath(0), testutil.RateLimitResponse())

	svc := newService(t, mock, redisClient)
	ctx := context.Background()

	err := svc.LoadRange(ctx, 0, 9)
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Class != client.ErrorClassRateLimit {
		t.Fatalf("first LoadRange error = %v, want rate limit HTTPError", err)
	}

	before := mock.RequestCount()
	err = svc.LoadRange(ctx, 0, 9)
	if !errors.Is(err, service.ErrQuotaExhausted) {
		t.Fatalf("second LoadRange error = %v, want ErrQuotaExhausted", err)
	}
	if mock.RequestCount() != before {
		t.Error("blocked load still reached the upstream")
	}
	if svc.IsLoaded(0, 9) {
		t.Error("IsLoaded(0, 9) = true after failed loads")
	}
}

// TestSharedQuotaAcrossInstances checks that two services sharing one Redis
// see each other's quota updates.
func TestSharedQuotaAcrossInstances(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	limited := testutil.NewMockUpstream()
	defer limited.Close()
	limited.SetResponse(testutil.PagePath(0), testutil.RateLimitResponse())

	healthy := testutil.NewMockUpstream()
	defer healthy.Close()
	healthy.SetCatalog(testutil.CatalogOptions{Pages: 1, PageSize: 10})

	first := newService(t, limited, redisClient)
	second := newService(t, healthy, redisClient)
	ctx := context.Background()

	if err := first.LoadRange(ctx, 0, 0); err == nil {
		t.Fatal("expected rate limit error from first instance")
	}

	if err := second.LoadRange(ctx, 0, 0); !errors.Is(err, service.ErrQuotaExhausted) {
		t.Errorf("second instance LoadRange error = %v, want ErrQuotaExhausted", err)
	}
	if got := healthy.RequestCount(); got != 0 {
		t.Errorf("second upstream requests = %d, want 0", got)
	}
}
