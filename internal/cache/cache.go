package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediagrab/backend/internal/fetch"
	"github.com/mediagrab/backend/internal/logger"
)

// Cache stores probe results in Redis so repeated lookups of the same
// URL skip the external tool. All methods are nil-safe: a nil *Cache
// behaves as an always-miss cache, which lets the server run without
// Redis configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func New(addr string, ttl time.Duration, log *logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		log:    log.WithComponent("cache"),
	}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Ping reports whether the backing Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return redis.ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

// GetInfo returns a cached probe result for url, or (nil, false)
func (c *Cache) GetInfo(ctx context.Context, url string) (*fetch.Result, bool) {
	if c == nil {
		return nil, false
	}

	key := infoKey(url)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn(ctx, "cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}

	var result fetch.Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		c.log.Warn(ctx, "cache entry corrupt, dropping", map[string]interface{}{
			"key": key,
		})
		c.client.Del(ctx, key)
		return nil, false
	}
	return &result, true
}

// SetInfo caches a probe result for url. Failures are logged and
// swallowed; the cache is best effort.
func (c *Cache) SetInfo(ctx context.Context, url string, result *fetch.Result) {
	if c == nil || result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	key := infoKey(url)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// infoKey derives a fixed-length cache key from a URL. URLs can be
// arbitrarily long and contain characters awkward in key names, so
// they are hashed.
func infoKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "mediainfo:" + hex.EncodeToString(hash[:])
}
