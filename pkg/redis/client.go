package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/dqpipe/backend/pkg/config"
)

// Namespace prefixes every dqpipe key: <ns>:lock:*, <ns>:cache:*, <ns>:ratelimit:*
const Namespace = "dqpipe"

// 락/캐시 명령은 모두 짧음 → 느린 redis 때문에 파티션 처리가 멈추지 않게 타임아웃을 짧게
const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second
	poolSize    = 16
)

// Client is the optional coordination store: partition locks, read cache
// for the API and the run-trigger/webhook rate limits.
// A disabled client turns every helper into a no-op (single-process mode).
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects when REDIS_ENABLED is set and returns a disabled client otherwise
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolSize:     poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{
		rdb:     rdb,
		enabled: true,
	}, nil
}

// NewFromRedis wraps an existing go-redis client (tests, shared pools)
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, enabled: rdb != nil}
}

// PartitionLock returns the per-ingest_date processing lock
func (c *Client) PartitionLock(ingestDate string, ttl time.Duration) *Lock {
	return c.NewLock(Namespace, PartitionLockKey(ingestDate), ttl)
}

// PartitionLockKey is the lock key (without namespace) for one ingest_date
func PartitionLockKey(ingestDate string) string {
	return "partition:" + ingestDate
}

func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled reports whether locks and cache hit a real server
func (c *Client) Enabled() bool {
	return c.enabled
}

// Redis exposes the go-redis client (scripts, tests)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
