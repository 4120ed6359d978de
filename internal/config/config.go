package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	LogLevel  string
	Env       string
	DocStore  DocStoreConfig
	Lifecycle LifecycleConfig
	Redis     RedisConfig
	Session   SessionConfig
	Outbox    OutboxConfig
	DB        DBConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

// DocStoreConfig points at the json-server style document store
type DocStoreConfig struct {
	BaseURL           string
	Timeout           time.Duration
	MaxAttempts       int
	OptimisticLocking bool
}

// LifecycleConfig holds the order timing rules
type LifecycleConfig struct {
	CancelWindowHours  float64
	StageDurationHours float64
}

// RedisConfig holds the session store connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	TTL time.Duration
}

// OutboxConfig controls lifecycle event publishing
type OutboxConfig struct {
	Enabled         bool
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ConsumerGroup string
}

// RateLimitConfig sizes the global, per-IP and per-IP auth token buckets
type RateLimitConfig struct {
	GlobalMaxTokens float64
	GlobalRate      float64
	IPMaxTokens     float64
	IPRate          float64
	AuthMaxTokens   float64
	AuthRate        float64
	TrustForwarded  bool
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return defaultValue
}

type parser struct {
	errs []string
}

func (p *parser) int(key, def string) int {
	v, err := strconv.Atoi(getEnv(key, def))
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func (p *parser) float(key, def string) float64 {
	v, err := strconv.ParseFloat(getEnv(key, def), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func (p *parser) bool(key, def string) bool {
	v, err := strconv.ParseBool(getEnv(key, def))
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func (p *parser) duration(key, def string) time.Duration {
	v, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

// Load reads a .env file when present, then the environment, and returns a Config struct.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		Port:     p.int("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),
		DocStore: DocStoreConfig{
			BaseURL:           strings.TrimRight(getEnv("DOCSTORE_URL", "http://localhost:5000"), "/"),
			Timeout:           p.duration("DOCSTORE_TIMEOUT", "5s"),
			MaxAttempts:       p.int("DOCSTORE_MAX_ATTEMPTS", "3"),
			OptimisticLocking: p.bool("DOCSTORE_OPTIMISTIC_LOCKING", "false"),
		},
		Lifecycle: LifecycleConfig{
			CancelWindowHours:  p.float("CANCEL_WINDOW_HOURS", "2"),
			StageDurationHours: p.float("STAGE_DURATION_HOURS", "1"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", "0"),
		},
		Session: SessionConfig{
			TTL: p.duration("SESSION_TTL", "24h"),
		},
		Outbox: OutboxConfig{
			Enabled:         p.bool("OUTBOX_ENABLED", "false"),
			PollingInterval: p.duration("OUTBOX_POLLING_INTERVAL", "5s"),
			BatchSize:       p.int("OUTBOX_BATCH_SIZE", "10"),
			MaxRetries:      p.int("OUTBOX_MAX_RETRIES", "5"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     p.int("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			OrdersTopic:   getEnv("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-orders"),
		},
		RateLimit: RateLimitConfig{
			GlobalMaxTokens: p.float("RATE_LIMIT_GLOBAL_TOKENS", "200"),
			GlobalRate:      p.float("RATE_LIMIT_GLOBAL_RATE", "100"),
			IPMaxTokens:     p.float("RATE_LIMIT_IP_TOKENS", "30"),
			IPRate:          p.float("RATE_LIMIT_IP_RATE", "10"),
			AuthMaxTokens:   p.float("RATE_LIMIT_AUTH_TOKENS", "5"),
			AuthRate:        p.float("RATE_LIMIT_AUTH_RATE", "0.2"),
			TrustForwarded:  p.bool("RATE_LIMIT_TRUST_FORWARDED", "false"),
		},
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(p.errs, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the lifecycle rules cannot work with
func (c *Config) Validate() error {
	if c.Lifecycle.CancelWindowHours <= 0 {
		return fmt.Errorf("CANCEL_WINDOW_HOURS must be positive, got %v", c.Lifecycle.CancelWindowHours)
	}
	if c.Lifecycle.StageDurationHours <= 0 {
		return fmt.Errorf("STAGE_DURATION_HOURS must be positive, got %v", c.Lifecycle.StageDurationHours)
	}
	if c.DocStore.MaxAttempts < 1 {
		return fmt.Errorf("DOCSTORE_MAX_ATTEMPTS must be at least 1, got %d", c.DocStore.MaxAttempts)
	}
	if c.DocStore.BaseURL == "" {
		return fmt.Errorf("DOCSTORE_URL is required")
	}
	return nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
