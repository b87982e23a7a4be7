package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Order.DefaultPreparationMinutes)
	assert.Equal(t, time.Hour, cfg.Order.DeadlineLead)
	assert.Equal(t, 20, cfg.Order.NotificationLimit)
	assert.Equal(t, 15*time.Minute, cfg.Tracking.StopInterval)
	assert.Equal(t, 0.5, cfg.Tracking.NearbyKm)
	assert.Equal(t, 1.0, cfg.Tracking.NextStopKm)
	assert.Equal(t, 10*time.Minute, cfg.Tracking.NearbyWindow)
	assert.Equal(t, 15*time.Minute, cfg.Tracking.NextStopWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ORDER_LOCK_WAIT", "250ms")
	t.Setenv("TRACKING_NEARBY_KM", "0.25")
	t.Setenv("ORDER_DEFAULT_PREPARATION_MINUTES", "not-a-number")

	cfg := Load()

	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.LockWait)
	assert.Equal(t, 0.25, cfg.Tracking.NearbyKm)
	assert.Equal(t, 30, cfg.Order.DefaultPreparationMinutes)
}

func TestStringMasksSecret(t *testing.T) {
	t.Setenv("AUTH_DEV_SECRET", "super-secret")
	cfg := Load()

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "devSecret=****")
}
