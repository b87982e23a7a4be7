package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"ms-grouporder/internal/logger"
)

// LockExpiry describes a lock key that reached its TTL while still held.
// Released locks are deleted, so an expiry means the holder overran.
type LockExpiry struct {
	Kind string // order or cart
	ID   string
}

// ParseExpiredKey maps an expired key name to the lock it guarded.
func ParseExpiredKey(key string) (LockExpiry, bool) {
	switch {
	case strings.HasPrefix(key, "order_lock:"):
		return LockExpiry{Kind: "order", ID: strings.TrimPrefix(key, "order_lock:")}, true
	case strings.HasPrefix(key, "cart_lock:"):
		return LockExpiry{Kind: "cart", ID: strings.TrimPrefix(key, "cart_lock:")}, true
	default:
		return LockExpiry{}, false
	}
}

// WatchLockExpiry subscribes to keyspace expiry events and reports locks
// whose holder ran past the TTL. It returns once the subscription is set up.
func WatchLockExpiry(ctx context.Context, rdb *redis.Client, log *logger.Logger, onExpire func(LockExpiry)) error {
	if _, err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	}
	val, err := rdb.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to get keyspace config: %v", err))
	} else if len(val) < 2 || !strings.Contains(fmt.Sprint(val[1]), "x") || !strings.Contains(fmt.Sprint(val[1]), "E") {
		log.Warn("REDIS", "Keyspace notifications not properly configured for expiry events!")
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", rdb.Options().DB)
	pubsub := rdb.PSubscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	log.Info("REDIS", fmt.Sprintf("Subscribed to %s", channel))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				exp, ok := ParseExpiredKey(msg.Payload)
				if !ok {
					continue
				}
				log.Warn("LOCK", fmt.Sprintf("%s lock for %s expired before release", exp.Kind, exp.ID))
				if onExpire != nil {
					onExpire(exp)
				}
			}
		}
	}()
	return nil
}
