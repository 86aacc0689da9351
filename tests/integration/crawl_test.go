//go:build integration

package integration

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aesuli/amadown2py/internal/testutil"
	"github.com/aesuli/amadown2py/pkg/artifact"
	"github.com/aesuli/amadown2py/pkg/crawl"
	"github.com/aesuli/amadown2py/pkg/fetcher"
	"github.com/aesuli/amadown2py/pkg/signals"
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

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newController(t *testing.T, site *testutil.MockSite, store artifact.Store, extractor signals.Extractor) *crawl.Controller {
	t.Helper()
	f := fetcher.New(fetcher.Config{Sleep: noSleep, Logger: zerolog.Nop()})
	cfg := crawl.DefaultConfig()
	cfg.BaseURL = site.URL()
	ctrl, err := crawl.New(f, store, extractor, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("crawl.New() error = %v", err)
	}
	return ctrl
}

// TestCrawlMirrorsToRedis downloads a product through the full stack and
// checks the disk artifacts and the Redis mirror agree.
func TestCrawlMirrorsToRedis(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	site := testutil.NewMockSite()
	defer site.Close()
	site.SetProductWindow("B1", 4, 1)
	site.Enqueue("B1", 3, testutil.NewServiceUnavailableResponse())

	ctx := context.Background()
	files := artifact.NewFileStore(t.TempDir())
	mirror := artifact.NewRedisMirror(redisClient, time.Hour)
	store := artifact.NewTee(files, zerolog.Nop(), mirror)

	results, err := newController(t, site, store, signals.NewDOM()).RunAll(ctx, []string{"B1"})
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	res := results[0]
	if res.StopReason != crawl.StopCompleted || res.Captured != 4 || res.Retries != 1 {
		t.Errorf("result = %+v, want completed with 4 pages and 1 retry", res)
	}

	pages, err := mirror.Pages(ctx, "com", "B1")
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if !reflect.DeepEqual(pages, []int{1, 2, 3, 4}) {
		t.Errorf("mirrored pages = %v, want [1 2 3 4]", pages)
	}

	for p := 1; p <= 4; p++ {
		key := artifact.Key{Domain: "com", ID: "B1", Page: p}
		onDisk, err := files.Load(ctx, key)
		if err != nil {
			t.Fatalf("Load(%v) error = %v", key, err)
		}
		mirrored, err := mirror.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%v) error = %v", key, err)
		}
		if onDisk != mirrored {
			t.Errorf("page %d differs between disk and Redis", p)
		}
	}

	ttl, err := redisClient.TTL(ctx, artifact.PageKey(artifact.Key{Domain: "com", ID: "B1", Page: 1})).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want within (0, 1h]", ttl)
	}
}

// TestResumeIgnoresRedis checks the mirror never drives skip decisions:
// with the disk emptied, every page is fetched again.
func TestResumeIgnoresRedis(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	site := testutil.NewMockSite()
	defer site.Close()
	site.SetProduct("B2", 3)

	ctx := context.Background()
	mirror := artifact.NewRedisMirror(redisClient, 0)

	first := artifact.NewTee(artifact.NewFileStore(t.TempDir()), zerolog.Nop(), mirror)
	newController(t, site, first, signals.NewRegex()).Run(ctx, "B2")
	site.Reset()

	second := artifact.NewTee(artifact.NewFileStore(t.TempDir()), zerolog.Nop(), mirror)
	res := newController(t, site, second, signals.NewRegex()).Run(ctx, "B2")

	if res.Skipped != 0 || res.Captured != 3 {
		t.Errorf("Skipped/Captured = %d/%d, want 0/3", res.Skipped, res.Captured)
	}
	if got := site.RequestedPages("B2"); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("RequestedPages = %v, want [1 2 3]", got)
	}

	content, err := mirror.Get(ctx, artifact.Key{Domain: "com", ID: "B2", Page: 2})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !strings.Contains(content, "review 2 of B2") {
		t.Errorf("mirrored page 2 = %q", content)
	}
}
