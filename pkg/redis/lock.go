package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld another worker owns the lock
var ErrLockHeld = errors.New("lock held by another worker")

// Release/extend only when we still own the key
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// Lock is a SET NX lock with an ownership token
// ⭐ SSOT: ingest_date 단위 처리 락 (여러 워커가 같은 날짜를 동시에 처리하지 않도록)
//
// Redis 가 꺼져 있으면 항상 획득 성공 (단일 프로세스 모드).
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLock creates a lock for key (not yet acquired)
func (c *Client) NewLock(prefix, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: c,
		key:    fmt.Sprintf("%s:lock:%s", prefix, key),
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Key returns the full redis key
func (l *Lock) Key() string {
	return l.key
}

// Acquire tries once; returns ErrLockHeld when another owner holds it
func (l *Lock) Acquire(ctx context.Context) error {
	if !l.client.Enabled() {
		return nil
	}

	ok, err := l.client.Redis().SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.key, ErrLockHeld)
	}
	return nil
}

// Release deletes the key if still owned
func (l *Lock) Release(ctx context.Context) error {
	if !l.client.Enabled() {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client.Redis(), []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Extend resets the TTL; ErrLockHeld if ownership was lost
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.client.Enabled() {
		return nil
	}

	n, err := extendScript.Run(ctx, l.client.Redis(), []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", l.key, ErrLockHeld)
	}
	return nil
}
