package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/domain/ports"
	"cnb-rate-service/pkg/logger"
)

var _ ports.RateCache = (*RedisCache)(nil)

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// RedisCache shares rate sets between replicas. Entries are JSON encoded
// and expire in Redis at their StaleUntil.
type RedisCache struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
	now    func() time.Time
}

// NewRedisCache connects and pings the server once.
func NewRedisCache(ctx context.Context, cfg RedisConfig, log *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	log.Info("Connected to redis for rate cache", "addr", cfg.Addr, "db", cfg.DB)

	return newRedisCache(client, cfg.KeyPrefix, log), nil
}

func newRedisCache(client *redis.Client, prefix string, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, log: log, now: time.Now}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.CachedRates, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		c.log.Warn("Dropping undecodable redis cache entry", "key", key, "error", err)
		c.client.Del(ctx, c.key(key))
		return nil, false
	}
	if !entry.IsUsable(c.now()) {
		return nil, false
	}
	return entry, true
}

func decodeEntry(data []byte) (*model.CachedRates, error) {
	var entry model.CachedRates
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJsonUnmarshal, err)
	}
	if entry.Rates == nil {
		return nil, ErrInvalidEntry
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry *model.CachedRates) error {
	if entry == nil || entry.Rates == nil {
		return ErrInvalidEntry
	}
	ttl := entry.TTL(c.now())
	if ttl <= 0 {
		return c.Delete(ctx, key)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJsonMarshal, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Purge removes every key under the configured prefix.
func (c *RedisCache) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete redis keys: %w", err)
	}
	c.log.Info("Purged redis cache", "count", len(keys))
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
