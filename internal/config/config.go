package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store and broker driver names.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"

	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
	BrokerNone     = "none"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Broker   BrokerConfig
	Events   EventsConfig
	Logger   LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the user and counter backends.
type StoreConfig struct {
	Driver        string
	CounterDriver string
}

// MongoConfig holds document store connection values.
type MongoConfig struct {
	URI      string
	Database string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BrokerConfig holds message broker values.
type BrokerConfig struct {
	Driver   string
	Brokers  []string
	Topic    string
	ClientID string
}

// EventsConfig tunes the asynchronous event worker.
type EventsConfig struct {
	QueueSize          int
	Workers            int
	SendTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	appName := getEnv("APP_NAME", "telecomx-user-service")
	mongoURI := os.Getenv("MONGODB_URI")

	defaultDriver := DriverMemory
	if mongoURI != "" {
		defaultDriver = DriverMongo
	}
	storeDriver := strings.ToLower(getEnv("STORE_DRIVER", defaultDriver))

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver:        storeDriver,
			CounterDriver: strings.ToLower(getEnv("COUNTER_DRIVER", storeDriver)),
		},
		Mongo: MongoConfig{
			URI:      mongoURI,
			Database: getEnv("MONGODB_DATABASE", "telecomx"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Broker: BrokerConfig{
			Driver:   strings.ToLower(getEnv("BROKER_DRIVER", BrokerKafka)),
			Brokers:  splitList(getEnv("BROKER", "kafka.railway.internal:29092")),
			Topic:    getEnv("EVENTS_TOPIC", "Customer"),
			ClientID: getEnv("KAFKA_CLIENT_ID", appName),
		},
		Events: EventsConfig{
			QueueSize:          getEnvAsInt("EVENTS_QUEUE_SIZE", 1024),
			Workers:            getEnvAsInt("EVENTS_WORKERS", 1),
			SendTimeoutSeconds: getEnvAsInt("EVENTS_SEND_TIMEOUT_SECONDS", 10),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Store.CounterDriver {
	case DriverMongo, DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("invalid COUNTER_DRIVER %q", c.Store.CounterDriver)
	}
	switch c.Broker.Driver {
	case BrokerKafka, BrokerRabbitMQ, BrokerNone:
	default:
		return fmt.Errorf("invalid BROKER_DRIVER %q", c.Broker.Driver)
	}
	if c.Broker.Driver != BrokerNone && len(c.Broker.Brokers) == 0 {
		return fmt.Errorf("BROKER must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SendTimeout bounds a single connect+send attempt.
func (e EventsConfig) SendTimeout() time.Duration {
	if e.SendTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.SendTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
