package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-grouporder/internal/kafka"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
)

// ProximityDispatcher schedules a proximity check for a location ping
// without waiting for it.
type ProximityDispatcher interface {
	Dispatch(ctx context.Context, ping models.LocationPing) error
}

type CheckFunc func(ctx context.Context, orderID string, lat, lng float64) error

// AsyncDispatcher runs each check on its own goroutine with a fresh
// timeout, so the check outlives the request that triggered it. Failures
// and panics are logged and dropped.
type AsyncDispatcher struct {
	Check   CheckFunc
	Timeout time.Duration
	Logger  *logger.Logger

	wg sync.WaitGroup
}

func NewAsyncDispatcher(check CheckFunc, timeout time.Duration, log *logger.Logger) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncDispatcher{Check: check, Timeout: timeout, Logger: log}
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, ping models.LocationPing) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.Logger.Error("TRACKING", fmt.Sprintf("Proximity check for %s panicked: %v", ping.OrderID, r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := d.Check(ctx, ping.OrderID, ping.Lat, ping.Lng); err != nil {
			d.Logger.Warn("TRACKING", fmt.Sprintf("Proximity check for %s failed: %v", ping.OrderID, err))
		}
	}()
	return nil
}

// Wait blocks until every scheduled check has finished.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// KafkaDispatcher hands pings to the tracking worker through Kafka, keyed by
// order so one order's pings stay in sequence.
type KafkaDispatcher struct {
	Events kafka.Publisher
	Topic  string
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, ping models.LocationPing) error {
	return d.Events.PublishJSON(ctx, d.Topic, ping.OrderID, ping)
}
