package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/logger"
)

// setupTestRedis starts an in-memory Redis and a client connected to it.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func newTestLocker(client *redis.Client) *Locker {
	return &Locker{
		Client:        client,
		TTL:           10 * time.Second,
		Wait:          200 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
		Logger:        logger.Discard(),
	}
}

func TestLockOrder_AcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := newTestLocker(client)
	ctx := context.Background()

	unlock, err := l.LockOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("order_lock:order-1"))

	unlock()
	assert.False(t, mr.Exists("order_lock:order-1"))

	unlock, err = l.LockOrder(ctx, "order-1")
	require.NoError(t, err)
	unlock()
}

func TestLockOrder_TimesOutWhileHeld(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := newTestLocker(client)
	ctx := context.Background()

	unlock, err := l.LockOrder(ctx, "order-1")
	require.NoError(t, err)
	defer unlock()

	_, err = l.LockOrder(ctx, "order-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	// Other orders are not affected.
	other, err := l.LockOrder(ctx, "order-2")
	require.NoError(t, err)
	other()
}

func TestLockOrder_WaiterProceedsAfterRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := newTestLocker(client)
	l.Wait = 2 * time.Second
	ctx := context.Background()

	unlock, err := l.LockOrder(ctx, "order-1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		u, err := l.LockOrder(ctx, "order-1")
		if err == nil {
			u()
		}
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	unlock()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestLockOrder_CancelledContext(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := newTestLocker(client)
	l.Wait = 5 * time.Second

	unlock, err := l.LockOrder(context.Background(), "order-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.LockOrder(ctx, "order-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelease_DoesNotFreeAnotherHoldersLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := newTestLocker(client)
	ctx := context.Background()

	staleUnlock, err := l.LockOrder(ctx, "order-1")
	require.NoError(t, err)

	// First holder's TTL lapses and a second holder takes over.
	mr.FastForward(11 * time.Second)
	freshUnlock, err := l.LockOrder(ctx, "order-1")
	require.NoError(t, err)

	staleUnlock()
	assert.True(t, mr.Exists("order_lock:order-1"), "stale release must not delete the new holder's key")

	freshUnlock()
	assert.False(t, mr.Exists("order_lock:order-1"))
}

func TestLockOrder_SerializesCriticalSection(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := newTestLocker(client)
	l.Wait = 5 * time.Second
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
		counter int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.LockOrder(ctx, "order-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			counter++
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 10, counter)
}

func TestClaim_OnlyFirstCallerWinsWithinTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := newTestLocker(client)
	ctx := context.Background()

	ok, err := l.Claim(ctx, "proximity:o1:u1:rider_nearby", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(ctx, "proximity:o1:u1:rider_nearby", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(10*time.Minute + time.Second)
	ok, err = l.Claim(ctx, "proximity:o1:u1:rider_nearby", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnclaim_FreesKeyBeforeTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := newTestLocker(client)
	ctx := context.Background()

	ok, err := l.Claim(ctx, "proximity:rider_nearby:o1:u1", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unclaim(ctx, "proximity:rider_nearby:o1:u1"))
	assert.False(t, mr.Exists("proximity:rider_nearby:o1:u1"))

	ok, err = l.Claim(ctx, "proximity:rider_nearby:o1:u1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockCart_UsesSeparateKeyspace(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := newTestLocker(client)
	ctx := context.Background()

	orderUnlock, err := l.LockOrder(ctx, "same-id")
	require.NoError(t, err)
	defer orderUnlock()

	cartUnlock, err := l.LockCart(ctx, "same-id")
	require.NoError(t, err)
	assert.True(t, mr.Exists("cart_lock:same-id"))
	cartUnlock()
}
