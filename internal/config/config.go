package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Order    OrderConfig
	Tracking TrackingConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	PublicURL      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver        string // sqlite or postgres
	DSN           string
	MigrationsDir string
	AutoMigrate   bool
	SeedCatalog   bool
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
}

type RedisConfig struct {
	Addr          string
	LockTTL       time.Duration
	LockWait      time.Duration
	RetryInterval time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderEvents    string
	Notifications  string
	RiderLocations string
}

type AuthConfig struct {
	OIDCIssuer string
	DevSecret  string
}

type OrderConfig struct {
	DefaultPreparationMinutes int
	DeadlineLead              time.Duration
	NotificationLimit         int
	ListConcurrency           int
}

type TrackingConfig struct {
	ReferenceLat      float64
	ReferenceLng      float64
	PlaceholderSpread float64
	StopInterval      time.Duration
	NearbyKm          float64
	NextStopKm        float64
	NearbyWindow      time.Duration
	NextStopWindow    time.Duration
	CheckTimeout      time.Duration
	LocationRate      float64
	LocationBurst     int
}

type LogConfig struct {
	Dir   string
	Level string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8085"),
			PublicURL:      getEnv("PUBLIC_URL", "http://localhost:5173"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   0, // SSE streams stay open
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", "sqlite"),
			DSN:           getEnv("DB_DSN", "file:grouporder.db?cache=shared"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
			SeedCatalog:   getEnvBool("DB_SEED_CATALOG", false),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			LockTTL:       getEnvDuration("ORDER_LOCK_TTL", 10*time.Second),
			LockWait:      getEnvDuration("ORDER_LOCK_WAIT", 5*time.Second),
			RetryInterval: getEnvDuration("ORDER_LOCK_RETRY", 10*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "grouporder-tracking-worker"),
			Topics: TopicConfig{
				OrderEvents:    getEnv("KAFKA_TOPIC_ORDER_EVENTS", "grouporder.order.events"),
				Notifications:  getEnv("KAFKA_TOPIC_NOTIFICATIONS", "grouporder.notifications"),
				RiderLocations: getEnv("KAFKA_TOPIC_RIDER_LOCATIONS", "grouporder.rider.locations"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			DevSecret:  getEnv("AUTH_DEV_SECRET", ""),
		},
		Order: DefaultOrderConfig(),
		Tracking: TrackingConfig{
			ReferenceLat:      getEnvFloat("TRACKING_REFERENCE_LAT", 28.6139),
			ReferenceLng:      getEnvFloat("TRACKING_REFERENCE_LNG", 77.2090),
			PlaceholderSpread: getEnvFloat("TRACKING_PLACEHOLDER_SPREAD", 0.1),
			StopInterval:      getEnvDuration("TRACKING_STOP_INTERVAL", 15*time.Minute),
			NearbyKm:          getEnvFloat("TRACKING_NEARBY_KM", 0.5),
			NextStopKm:        getEnvFloat("TRACKING_NEXT_STOP_KM", 1.0),
			NearbyWindow:      getEnvDuration("TRACKING_NEARBY_WINDOW", 10*time.Minute),
			NextStopWindow:    getEnvDuration("TRACKING_NEXT_STOP_WINDOW", 15*time.Minute),
			CheckTimeout:      getEnvDuration("TRACKING_CHECK_TIMEOUT", 5*time.Second),
			LocationRate:      getEnvFloat("TRACKING_LOCATION_RATE", 5),
			LocationBurst:     getEnvInt("TRACKING_LOCATION_BURST", 10),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
	}
}

func DefaultOrderConfig() OrderConfig {
	return OrderConfig{
		DefaultPreparationMinutes: getEnvInt("ORDER_DEFAULT_PREPARATION_MINUTES", 30),
		DeadlineLead:              getEnvDuration("ORDER_DEADLINE_LEAD", time.Hour),
		NotificationLimit:         getEnvInt("NOTIFICATION_LIST_LIMIT", 20),
		ListConcurrency:           getEnvInt("ORDER_LIST_CONCURRENCY", 8),
	}
}

// DefaultTrackingConfig returns the tracking settings with no environment overrides.
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		ReferenceLat:      28.6139,
		ReferenceLng:      77.2090,
		PlaceholderSpread: 0.1,
		StopInterval:      15 * time.Minute,
		NearbyKm:          0.5,
		NextStopKm:        1.0,
		NearbyWindow:      10 * time.Minute,
		NextStopWindow:    15 * time.Minute,
		CheckTimeout:      5 * time.Second,
		LocationRate:      5,
		LocationBurst:     10,
	}
}

// String renders the configuration for startup logs with secrets masked.
func (c *Config) String() string {
	secret := "unset"
	if c.Auth.DevSecret != "" {
		secret = "****"
	}
	return fmt.Sprintf(
		"port=%s db=%s redis=%s kafka=%t brokers=%v oidc=%q devSecret=%s",
		c.Server.Port, c.Database.Driver, c.Redis.Addr, c.Kafka.Enabled,
		c.Kafka.Brokers, c.Auth.OIDCIssuer, secret,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
