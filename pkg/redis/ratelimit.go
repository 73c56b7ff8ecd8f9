package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier (e.g., "run_trigger")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// slidingWindow trims the window, counts, then records the request atomically.
// KEYS[1]=zset, ARGV: now_ms, window_start_ms, limit, window_ms, member
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		return {0, 0}
	end

	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, window_ms)
	return {1, limit - count - 1}
`)

// For scopes a limit to one caller (client address, webhook host, ...)
func (c RateLimitConfig) For(scope string) RateLimitConfig {
	if scope == "" {
		return c
	}
	c.Key = c.Key + ":" + scope
	return c
}

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error). Disabled redis allows everything.
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now,
		now-cfg.Window.Milliseconds(),
		cfg.Limit,
		cfg.Window.Milliseconds(),
		uuid.NewString(), // 같은 ms 안의 요청도 구분
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit %s: unexpected reply %v", cfg.Key, result)
	}

	return result[0] == 1, int(result[1]), nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		// Wait before retrying
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			// Retry
		}
	}
}

// Predefined rate limit configs
var (
	// 수동 실행 트리거 (POST /api/runs): 분당 6회
	RunTriggerRateLimit = RateLimitConfig{
		Key:    "run_trigger",
		Limit:  6,
		Window: time.Minute,
	}

	// 알림 webhook: 워커 전체 합산 분당 30회
	WebhookRateLimit = RateLimitConfig{
		Key:    "alert_webhook",
		Limit:  30,
		Window: time.Minute,
	}
)
