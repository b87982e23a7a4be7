package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/cart"
	"ms-grouporder/internal/cart/cart_api"
	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/catalog/catalog_api"
	"ms-grouporder/internal/config"
	"ms-grouporder/internal/database"
	"ms-grouporder/internal/database/migrations"
	"ms-grouporder/internal/delivery"
	"ms-grouporder/internal/delivery/delivery_api"
	"ms-grouporder/internal/grouporder"
	orderdb "ms-grouporder/internal/grouporder/db"
	"ms-grouporder/internal/grouporder/order_api"
	rediswrap "ms-grouporder/internal/grouporder/redis"
	"ms-grouporder/internal/kafka"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/notification"
	notifdb "ms-grouporder/internal/notification/db"
	"ms-grouporder/internal/notification/notification_api"
	"ms-grouporder/internal/profile"
	"ms-grouporder/internal/profile/profile_api"
	"ms-grouporder/internal/sse"
)

func prepareDatabase(ctx context.Context, cfg *config.Config, bunDB *bun.DB, log *logger.Logger) {
	switch {
	case cfg.Database.Driver == "postgres" && cfg.Database.AutoMigrate:
		runner := migrations.NewRunner(bunDB, migrations.Options{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		}, log)
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to apply migrations: %v", err))
		}
		log.Info("MIGRATE", "✅ Migrations applied")
	case cfg.Database.Driver != "postgres":
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
		}
		log.Info("DATABASE", "✅ SQLite schema ready")
	}

	if cfg.Database.SeedCatalog {
		n, err := catalog.NewStore(bunDB).Seed(ctx)
		if err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to seed catalog: %v", err))
		}
		log.Info("DATABASE", fmt.Sprintf("Catalog seeded (%d new rows)", n))
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC setup failed: %v", err))
		}
		log.Info("AUTH", fmt.Sprintf("Verifying tokens issued by %s", cfg.OIDCIssuer))
		return v
	}
	if cfg.DevSecret == "" {
		log.Fatal("AUTH", "Neither OIDC_ISSUER nor AUTH_DEV_SECRET is set")
	}
	log.Warn("AUTH", "Using HS256 development tokens")
	return auth.DevVerifier{Secret: []byte(cfg.DevSecret)}
}

// requestLogger records method, path, status and latency of every request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Dir:      cfg.Log.Dir,
		Service:  "grouporder-service",
		MinLevel: logger.ParseLevel(cfg.Log.Level),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Group Order Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("CONFIG", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	prepareDatabase(ctx, cfg, bunDB, log)

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()
	locker := rediswrap.NewLocker(redisClient, cfg.Redis, log)
	if err := rediswrap.WatchLockExpiry(ctx, redisClient, log, nil); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Lock expiry watcher disabled: %v", err))
	}

	// events stays a nil interface when Kafka is off.
	var events kafka.Publisher
	var dispatcher delivery.ProximityDispatcher
	var relay *kafka.Consumer
	instanceID := uuid.NewString()
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		topics := []string{cfg.Kafka.Topics.OrderEvents, cfg.Kafka.Topics.Notifications, cfg.Kafka.Topics.RiderLocations}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		events = producer
		dispatcher = &delivery.KafkaDispatcher{Events: producer, Topic: cfg.Kafka.Topics.RiderLocations}
		// Every API process needs every notice, so each gets its own group.
		relay = kafka.NewTailConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Notifications, "grouporder-api-live-"+instanceID, log)
		defer relay.Close()
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	} else {
		log.Warn("KAFKA", "Kafka disabled; events are not published and proximity checks run in-process")
	}

	cartStore := cart.NewStore(bunDB)
	catalogStore := catalog.NewStore(bunDB)
	profileStore := profile.NewStore(bunDB)
	orders := &orderdb.DB{Bun: bunDB}

	notifications := notification.NewService(&notifdb.DB{Bun: bunDB}, notification.Options{
		Broker: sse.NewBroker[models.Notification](16),
		Events: events,
		Topic:  cfg.Kafka.Topics.Notifications,
		Limit:  cfg.Order.NotificationLimit,
		Origin: "api-" + instanceID,
	}, log)
	if relay != nil {
		go func() {
			if err := relay.Start(ctx, notifications.Relay); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Notification relay stopped: %v", err))
			}
		}()
	}

	orderService := grouporder.NewService(grouporder.Deps{
		DB:       orders,
		Locker:   locker,
		Cart:     cartStore,
		Catalog:  catalogStore,
		Profiles: profileStore,
		Notifier: notifications,
		Events:   events,
		Topic:    cfg.Kafka.Topics.OrderEvents,
		Logger:   log,
	}, cfg.Order)

	router := delivery.NewRouter(orders, locker, notifications, cfg.Tracking, log)
	router.Events = events
	router.Topic = cfg.Kafka.Topics.OrderEvents
	tracker := delivery.NewTracker(orders, notifications, delivery.TrackerOptions{
		Claimer:    locker,
		Dispatcher: dispatcher,
		Broker:     sse.NewBroker[models.LocationPing](16),
	}, cfg.Tracking, log)

	verifier := newVerifier(ctx, cfg.Auth, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Route("/api/catalog", catalog_api.NewHandler(catalogStore, log).Routes)
	log.Info("ROUTER", "Public catalog routes registered under /api/catalog")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		log.Info("AUTH", "Token middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			r.Route("/cart", cart_api.NewHandler(cartStore, catalogStore, locker, log).Routes)
			r.Route("/profile", profile_api.NewHandler(profileStore, log).Routes)
			r.Route("/group-orders", order_api.NewHandler(orderService, cfg.Server.PublicURL, log).Routes)
			r.Route("/delivery", delivery_api.NewHandler(router, tracker,
				delivery_api.NewRiderLimiter(cfg.Tracking.LocationRate, cfg.Tracking.LocationBurst), log).Routes)
			r.Route("/notifications", notification_api.NewHandler(notifications, log).Routes)
		})
		log.Info("ROUTER", "Cart, profile, group order, delivery and notification routes registered under /api")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Group Order Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Group Order Service shutdown complete")
	}
	if async, ok := tracker.Dispatcher.(*delivery.AsyncDispatcher); ok {
		async.Wait()
	}
}
