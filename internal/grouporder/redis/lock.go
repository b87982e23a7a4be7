package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-grouporder/internal/config"
	"ms-grouporder/internal/logger"
)

// ErrLockTimeout is returned when a lock is still held by someone else after
// the configured wait.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only while it still carries our token, so
// a holder whose TTL lapsed cannot free a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes mutations per shared order and per cart using SETNX
// keys with an owner token and TTL.
type Locker struct {
	Client        *redis.Client
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	Logger        *logger.Logger
}

func NewLocker(client *redis.Client, cfg config.RedisConfig, log *logger.Logger) *Locker {
	return &Locker{
		Client:        client,
		TTL:           cfg.LockTTL,
		Wait:          cfg.LockWait,
		RetryInterval: cfg.RetryInterval,
		Logger:        log,
	}
}

func orderKey(orderID string) string { return "order_lock:" + orderID }
func cartKey(userID string) string   { return "cart_lock:" + userID }

// LockOrder blocks until the order's lock is held and returns its release func.
func (l *Locker) LockOrder(ctx context.Context, orderID string) (func(), error) {
	return l.Acquire(ctx, orderKey(orderID))
}

// LockCart blocks until the user's cart lock is held. Callers that also hold
// an order lock must take the order lock first.
func (l *Locker) LockCart(ctx context.Context, userID string) (func(), error) {
	return l.Acquire(ctx, cartKey(userID))
}

// Acquire retries SETNX on key until it succeeds, ctx ends, or Wait elapses.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	retry := l.RetryInterval
	if retry <= 0 {
		retry = 10 * time.Millisecond
	}
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrLockTimeout)
		}

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Locker) release(key, token string) {
	// The caller's context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.Client, []string{key}, token).Int()
	if err != nil {
		l.Logger.Error("REDIS", fmt.Sprintf("Failed to release %s: %v", key, err))
		return
	}
	if n == 0 {
		l.Logger.Warn("REDIS", fmt.Sprintf("Lock %s expired before release", key))
	}
}

// Claim sets key for ttl if it is absent and reports whether this caller won.
// Proximity alerts use it to suppress duplicates across workers.
func (l *Locker) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Unclaim drops a claim so the next caller can win it before ttl runs out.
func (l *Locker) Unclaim(ctx context.Context, key string) error {
	if err := l.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("unclaim %s: %w", key, err)
	}
	return nil
}
