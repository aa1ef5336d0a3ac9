package config

import (
	"os"
	"strconv"
	"time"

	"ticketd/internal/booking"
	"ticketd/internal/cache"
	"ticketd/internal/capacity"
	"ticketd/internal/database"
	"ticketd/internal/messaging"
	"ticketd/internal/search"
)

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	Database database.Config
	Cache    cache.Config
	NATS     messaging.Config
	Search   search.Config
	Booking  booking.Config
	Capacity capacity.ClientConfig
}

// Load reads configuration from environment variables with sensible local
// defaults.
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "ticketd"),
			Password:           getEnv("DB_PASSWORD", "ticketd"),
			DBName:             getEnv("DB_NAME", "ticketd"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		Cache: cache.Config{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 50),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT_SEC", 5),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT_SEC", 3),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT_SEC", 3),
			UsersHashKey: getEnv("REDIS_USERS_HASH_KEY", "users:auth"),
		},

		NATS: messaging.Config{
			URL:             getEnv("NATS_URL", "nats://localhost:4222"),
			Name:            getEnv("NATS_CLIENT_NAME", "ticketd-api"),
			ConnectAttempts: getEnvInt("NATS_CONNECT_ATTEMPTS", 5),
			ConnectBackoff:  getEnvDuration("NATS_CONNECT_BACKOFF_SEC", 2),
			ReconnectWait:   getEnvDuration("NATS_RECONNECT_WAIT_SEC", 2),
			MaxReconnects:   getEnvInt("NATS_MAX_RECONNECTS", -1),
		},

		Search: search.Config{
			URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:      getEnv("ELASTICSEARCH_INDEX", "events"),
			MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		},

		Booking: booking.Config{
			LockTTL:           getEnvDuration("BOOKING_LOCK_TTL_SEC", 10),
			LockRetries:       getEnvInt("BOOKING_LOCK_RETRIES", 3),
			CreateRateMax:     getEnvInt("RATE_CREATE_MAX", 5),
			CreateRateWindow:  getEnvDuration("RATE_CREATE_WINDOW_SEC", 10),
			CancelRateMax:     getEnvInt("RATE_CANCEL_MAX", 3),
			CancelRateWindow:  getEnvDuration("RATE_CANCEL_WINDOW_SEC", 30),
			MinCancelNotice:   time.Duration(getEnvInt("CANCEL_NOTICE_HOURS", 24)) * time.Hour,
			StaleAfter:        time.Duration(getEnvInt("BOOKING_STALE_AFTER_MIN", 60)) * time.Minute,
			SweepInterval:     getEnvDuration("SWEEP_INTERVAL_SEC", 60),
			ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL_SEC", 300),
			ReconcileGrace:    getEnvDuration("RECONCILE_GRACE_SEC", 600),
		},

		Capacity: capacity.ClientConfig{
			RequestTimeout: getEnvDuration("CAPACITY_REQUEST_TIMEOUT_SEC", 5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
