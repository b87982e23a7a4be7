package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Broker fans values out to per-key SSE subscribers. Keys are user IDs for
// notification streams and order IDs for tracking streams.
type Broker[T any] struct {
	mu      sync.RWMutex
	clients map[string][]chan T
	buffer  int
}

func NewBroker[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = 10
	}
	return &Broker[T]{
		clients: make(map[string][]chan T),
		buffer:  buffer,
	}
}

// Subscribe registers a client for key. The returned channel is closed once
// ctx is done.
func (b *Broker[T]) Subscribe(ctx context.Context, key string) <-chan T {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	b.clients[key] = append(b.clients[key], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(key, ch)
	}()

	return ch
}

// Publish delivers v to every subscriber of key without blocking. Slow
// clients with a full buffer miss the value.
func (b *Broker[T]) Publish(key string, v T) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.clients[key] {
		select {
		case ch <- v:
		default:
		}
	}
}

func (b *Broker[T]) ClientCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[key])
}

func (b *Broker[T]) remove(key string, ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.clients[key]
	for i, c := range clients {
		if c == ch {
			b.clients[key] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.clients[key]) == 0 {
		delete(b.clients, key)
	}
}

// Serve streams values for key to w until the request ends. Each value is
// written as a JSON data frame under the given event name, and a comment
// heartbeat keeps idle proxies from dropping the connection.
func Serve[T any](w http.ResponseWriter, r *http.Request, b *Broker[T], key, event string, heartbeat time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := b.Subscribe(r.Context(), key)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s event: %w", event, err)
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return nil
		}
	}
}
