package artifact

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout for mirrored pages.
const (
	RedisKeyPrefix = "amadown"
)

// PageKey returns the Redis key holding the content of one page.
// Format: amadown:page:<domain>:<id>:<page>
func PageKey(key Key) string {
	return fmt.Sprintf("%s:page:%s:%s:%d", RedisKeyPrefix, key.Domain, key.ID, key.Page)
}

// IndexKey returns the sorted set listing mirrored pages of one product.
// Format: amadown:pages:<domain>:<id>
func IndexKey(domain, id string) string {
	return fmt.Sprintf("%s:pages:%s:%s", RedisKeyPrefix, domain, id)
}

// RedisMirror publishes captured pages to Redis for downstream consumers.
// It is a Sink: it never answers whether a page was captured.
type RedisMirror struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisMirror creates a mirror. ttl 0 keeps keys forever.
func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisMirror{redis: client, ttl: ttl}
}

// Save implements Sink.
func (m *RedisMirror) Save(ctx context.Context, key Key, content string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	idx := IndexKey(key.Domain, key.ID)
	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, PageKey(key), content, m.ttl)
	pipe.ZAdd(ctx, idx, redis.Z{Score: float64(key.Page), Member: strconv.Itoa(key.Page)})
	if m.ttl > 0 {
		pipe.Expire(ctx, idx, m.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		Errors.WithLabelValues("mirror").Inc()
		return &StoreError{Key: key, Op: "mirror", Err: err}
	}
	return nil
}

// Get returns a mirrored page.
func (m *RedisMirror) Get(ctx context.Context, key Key) (string, error) {
	content, err := m.redis.Get(ctx, PageKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return content, nil
}

// Pages returns the mirrored page numbers of a product in ascending order.
func (m *RedisMirror) Pages(ctx context.Context, domain, id string) ([]int, error) {
	members, err := m.redis.ZRange(ctx, IndexKey(domain, id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	pages := make([]int, 0, len(members))
	for _, s := range members {
		p, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		pages = append(pages, p)
	}
	return pages, nil
}
