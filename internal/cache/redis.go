package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"typeproof/internal/verify"
)

const defaultRedisPrefix = "typeproof:"

// RedisCache is a ReportCache shared between processes through Redis. Each
// document keeps an index set of its report keys so InvalidateDocument can
// drop them without scanning the keyspace.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisTTL sets the entry lifetime. Non-positive values use DefaultTTL.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRedisPrefix namespaces keys.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client: client,
		ttl:    DefaultTTL,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// OpenRedis parses a redis:// URL, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Reports and index sets live under separate namespaces so no document ID
// can name another document's index.
func (c *RedisCache) reportKey(documentID, key string) string {
	return c.prefix + "report:" + documentID + ":" + key
}

func (c *RedisCache) indexKey(documentID string) string {
	return c.prefix + "index:" + documentID
}

func (c *RedisCache) Get(ctx context.Context, documentID, key string) (*verify.Report, error) {
	data, err := c.client.Get(ctx, c.reportKey(documentID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return decode(data)
}

func (c *RedisCache) Set(ctx context.Context, documentID, key string, report *verify.Report) error {
	data, err := encode(report)
	if err != nil {
		return err
	}

	rk, ik := c.reportKey(documentID, key), c.indexKey(documentID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rk, data, c.ttl)
		pipe.SAdd(ctx, ik, rk)
		pipe.Expire(ctx, ik, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set report: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateDocument(ctx context.Context, documentID string) error {
	ik := c.indexKey(documentID)
	keys, err := c.client.SMembers(ctx, ik).Result()
	if err != nil {
		return fmt.Errorf("list cached reports: %w", err)
	}
	if err := c.client.Del(ctx, append(keys, ik)...).Err(); err != nil {
		return fmt.Errorf("invalidate reports: %w", err)
	}
	return nil
}
