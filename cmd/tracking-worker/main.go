// Command tracking-worker consumes rider location pings from Kafka and runs
// the proximity check for each, sending "rider nearby" and "you're next"
// notices. It lets the API answer location updates without waiting on them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ms-grouporder/internal/config"
	"ms-grouporder/internal/database"
	"ms-grouporder/internal/delivery"
	orderdb "ms-grouporder/internal/grouporder/db"
	rediswrap "ms-grouporder/internal/grouporder/redis"
	"ms-grouporder/internal/kafka"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/notification"
	notifdb "ms-grouporder/internal/notification/db"
	"ms-grouporder/internal/sse"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Dir:      cfg.Log.Dir,
		Service:  "grouporder-tracking-worker",
		MinLevel: logger.ParseLevel(cfg.Log.Level),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	if !cfg.Kafka.Enabled {
		log.Fatal("CONFIG", "KAFKA_ENABLED must be true for the tracking worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer rdb.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	// No client streams from this process. API processes relay the
	// notifications topic to their own live streams.
	notifications := notification.NewService(&notifdb.DB{Bun: bunDB}, notification.Options{
		Broker: sse.NewBroker[models.Notification](1),
		Events: producer,
		Topic:  cfg.Kafka.Topics.Notifications,
		Limit:  cfg.Order.NotificationLimit,
		Origin: "tracking-worker-" + uuid.NewString(),
	}, log)

	tracker := delivery.NewTracker(&orderdb.DB{Bun: bunDB}, notifications, delivery.TrackerOptions{
		Claimer: rediswrap.NewLocker(rdb, cfg.Redis, log),
	}, cfg.Tracking, log)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.RiderLocations, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("🚀 Tracking worker consuming %s as %s", cfg.Kafka.Topics.RiderLocations, cfg.Kafka.GroupID))
	if err := consumer.Start(ctx, tracker.HandlePing); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}
	log.Info("APP", "✅ Tracking worker shutdown complete")
}
