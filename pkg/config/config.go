// Package config loads service configuration from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Postgres struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
}

type CartConfig struct {
	HTTPPort           string
	OrdersServiceAddr  string
	MongoURI           string
	MongoDBName        string
	RedisAddr          string
	RedisPassword      string
	CatalogDBPath      string
	CatalogMigrations  string
	KafkaBrokers       []string
	JWTSecret          string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
	LogLevel           string
	Development        bool
}

type OrdersConfig struct {
	GRPCPort        string
	MetricsPort     string
	Store           string // "postgres" or "memory"
	Postgres        Postgres
	KafkaBrokers    []string
	OutboxInterval  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	Development     bool
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadDotEnv reads path into the process environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LoadCart(dotenv string) (*CartConfig, error) {
	if err := loadDotEnv(dotenv); err != nil {
		return nil, err
	}
	v := newViper()
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ORDERS_SERVICE_ADDR", "localhost:50055")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "cartdb")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("CATALOG_DB_PATH", "./catalog.db")
	v.SetDefault("CATALOG_MIGRATIONS_PATH", "./cart-service/internal/catalog/migrations")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEVELOPMENT", false)

	cfg := &CartConfig{
		HTTPPort:           v.GetString("HTTP_PORT"),
		OrdersServiceAddr:  v.GetString("ORDERS_SERVICE_ADDR"),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDBName:        v.GetString("MONGO_DB_NAME"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		CatalogDBPath:      v.GetString("CATALOG_DB_PATH"),
		CatalogMigrations:  v.GetString("CATALOG_MIGRATIONS_PATH"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		RateLimitPerSecond: v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Development:        v.GetBool("DEVELOPMENT"),
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}
	return cfg, nil
}

func LoadOrders(dotenv string) (*OrdersConfig, error) {
	if err := loadDotEnv(dotenv); err != nil {
		return nil, err
	}
	v := newViper()
	v.SetDefault("GRPC_PORT", "50055")
	v.SetDefault("METRICS_PORT", "9095")
	v.SetDefault("ORDERS_STORE", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "kitchen")
	v.SetDefault("MIGRATIONS_PATH", "./orders-service/internal/repository/migrations")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "500ms")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEVELOPMENT", false)

	cfg := &OrdersConfig{
		GRPCPort:    v.GetString("GRPC_PORT"),
		MetricsPort: v.GetString("METRICS_PORT"),
		Store:       strings.ToLower(v.GetString("ORDERS_STORE")),
		Postgres: Postgres{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		},
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		OutboxInterval:  v.GetDuration("OUTBOX_POLL_INTERVAL"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		Development:     v.GetBool("DEVELOPMENT"),
	}
	if cfg.Store != "postgres" && cfg.Store != "memory" {
		return nil, fmt.Errorf("ORDERS_STORE must be postgres or memory, got %q", cfg.Store)
	}
	if cfg.Postgres.Port <= 0 {
		return nil, fmt.Errorf("invalid DB_PORT: %d", cfg.Postgres.Port)
	}
	if cfg.OutboxInterval <= 0 {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %s", cfg.OutboxInterval)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
