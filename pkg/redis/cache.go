package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// DeleteMany removes several cached values
func (c *Cache) DeleteMany(ctx context.Context, keys ...string) error {
	if !c.client.Enabled() || len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = fmt.Sprintf("%s:cache:%s", c.prefix, k)
	}
	return c.client.Redis().Del(ctx, fullKeys...).Err()
}

// GetOrSet retrieves from cache or calls fn to populate it
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	// Try cache first
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	// Cache miss - call function
	value, err := fn()
	if err != nil {
		return err
	}

	// Store in cache
	if err := c.Set(ctx, key, value, ttl); err != nil {
		// Log but don't fail
		return nil
	}

	// Unmarshal into dest
	data, _ := json.Marshal(value)
	return json.Unmarshal(data, dest)
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute  // run list
	TTLMedium = 10 * time.Minute // daily metrics row
	TTLLong   = 1 * time.Hour    // reports
	TTLDaily  = 24 * time.Hour
)

// Common cache key generators

// DailyMetricsKey caches one daily metrics row
func DailyMetricsKey(ingestDate string) string {
	return fmt.Sprintf("metrics:daily:%s", ingestDate)
}

// HourlyEventsKey caches the hourly rows of one date
func HourlyEventsKey(ingestDate string) string {
	return fmt.Sprintf("metrics:hourly:%s", ingestDate)
}

// AlertKey caches the alert report of one date
func AlertKey(ingestDate string) string {
	return fmt.Sprintf("alerts:%s", ingestDate)
}

// PartitionKeys lists every cache key derived from one date (invalidation)
func PartitionKeys(ingestDate string) []string {
	return []string{
		DailyMetricsKey(ingestDate),
		HourlyEventsKey(ingestDate),
		AlertKey(ingestDate),
	}
}
