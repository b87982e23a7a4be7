// Package testutil wires the storage and locking collaborators shared by
// service tests: in-memory SQLite with the seeded catalog and a miniredis
// backed locker.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-grouporder/internal/cart"
	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/config"
	"ms-grouporder/internal/database"
	"ms-grouporder/internal/grouporder/redis"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/notification"
	notifdb "ms-grouporder/internal/notification/db"
	"ms-grouporder/internal/profile"
	"ms-grouporder/internal/sse"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type Env struct {
	DB            *bun.DB
	Redis         *goredis.Client
	Miniredis     *miniredis.Miniredis
	Locker        *redis.Locker
	Cart          *cart.Store
	Catalog       *catalog.Store
	Profiles      *profile.Store
	Notifications *notification.Service
	Broker        *sse.Broker[models.Notification]
	Clock         *Clock
	Logger        *logger.Logger
}

// Base is the instant every Env clock starts at.
var Base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func NewEnv(t *testing.T) *Env {
	t.Helper()
	ctx := context.Background()

	bunDB, err := database.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	catalogStore := catalog.NewStore(bunDB)
	_, err = catalogStore.Seed(ctx)
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	log := logger.Discard()
	clock := NewClock(Base)
	locker := redis.NewLocker(client, config.RedisConfig{
		LockTTL:       10 * time.Second,
		LockWait:      5 * time.Second,
		RetryInterval: 2 * time.Millisecond,
	}, log)

	broker := sse.NewBroker[models.Notification](16)
	notifications := notification.NewService(&notifdb.DB{Bun: bunDB}, notification.Options{Broker: broker}, log)
	notifications.Now = clock.Now

	cartStore := cart.NewStore(bunDB)
	cartStore.Now = clock.Now
	profiles := profile.NewStore(bunDB)
	profiles.Now = clock.Now

	return &Env{
		DB:            bunDB,
		Redis:         client,
		Miniredis:     mr,
		Locker:        locker,
		Cart:          cartStore,
		Catalog:       catalogStore,
		Profiles:      profiles,
		Notifications: notifications,
		Broker:        broker,
		Clock:         clock,
		Logger:        log,
	}
}

// FillCart puts quantity units of each product into userID's cart.
func (e *Env) FillCart(t *testing.T, userID string, lines map[string]int) {
	t.Helper()
	for product, qty := range lines {
		require.NoError(t, e.Cart.Add(context.Background(), userID, product, qty))
	}
}

// NotificationTypes lists the types userID received, newest first.
func (e *Env) NotificationTypes(t *testing.T, userID string) []string {
	t.Helper()
	ns, err := e.Notifications.ListRecent(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Type)
	}
	return out
}
