package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/envutil"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

// Client is the minimal cache surface the facades build on. Get returns
// ("", false, nil) on a miss; implementations must treat any backend error
// as a miss so caching never becomes a correctness dependency.
type Client interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisClient struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewRedisClient connects to REDIS_ADDR. A failed ping is returned to the
// caller, which may choose to run without a cache.
func NewRedisClient(log *logger.Logger) (Client, error) {
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &redisClient{rdb: rdb, log: log.With("service", "RedisCache")}, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

type nopClient struct{}

// NewNopClient returns a cache client where every read misses and every
// write is discarded. Used when no redis is configured.
func NewNopClient() Client { return nopClient{} }

func (nopClient) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }
func (nopClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}
func (nopClient) Del(ctx context.Context, key string) error { return nil }
