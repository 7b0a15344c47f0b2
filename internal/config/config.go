package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required"`
	RedisURL    string `envconfig:"REDIS_URL" validate:"required"`
	JWTSecret   string `envconfig:"JWT_SECRET" validate:"required"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	// Stores
	DBMaxConns    int32 `envconfig:"DB_MAX_CONNS" default:"20" validate:"gt=0"`
	DBMinConns    int32 `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0"`
	RedisPoolSize int   `envconfig:"REDIS_POOL_SIZE" default:"0" validate:"gte=0"`

	// Presence
	PresenceDebounce      time.Duration `envconfig:"PRESENCE_DEBOUNCE" default:"1s" validate:"gt=0"`
	HeartbeatPersistEvery int           `envconfig:"HEARTBEAT_PERSIST_EVERY" default:"10" validate:"gt=0"`
	PresenceTTL           time.Duration `envconfig:"PRESENCE_TTL" default:"15m" validate:"gt=0"`
	ReaperInterval        time.Duration `envconfig:"REAPER_INTERVAL" default:"5m" validate:"gt=0"`
	StaleThreshold        time.Duration `envconfig:"STALE_THRESHOLD" default:"10m" validate:"gt=0"`

	// Chat
	DedupWindow     time.Duration `envconfig:"DEDUP_WINDOW" default:"2s" validate:"gt=0"`
	DedupMaxEntries int           `envconfig:"DEDUP_MAX_ENTRIES" default:"1000" validate:"gt=0"`
	DedupTrimCount  int           `envconfig:"DEDUP_TRIM_COUNT" default:"500" validate:"gt=0"`

	// Queue
	ServiceDuration  time.Duration `envconfig:"SERVICE_DURATION" default:"30m" validate:"gt=0"`
	QueueTimezone    string        `envconfig:"QUEUE_TIMEZONE" default:"UTC"`
	ReminderInterval time.Duration `envconfig:"REMINDER_INTERVAL" default:"1m" validate:"gt=0"`
	ReminderLead     time.Duration `envconfig:"REMINDER_LEAD" default:"15m" validate:"gt=0"`

	// Notifications
	PushBatchSize   int    `envconfig:"PUSH_BATCH_SIZE" default:"100" validate:"gt=0"`
	ExpoAccessToken string `envconfig:"EXPO_ACCESS_TOKEN"`

	// External triggers
	PaymentWebhookSecret string `envconfig:"PAYMENT_WEBHOOK_SECRET"`
	InternalAPIKey       string `envconfig:"INTERNAL_API_KEY"`
}

// LoadConfig reads the process environment into a Config and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DBMinConns > c.DBMaxConns {
		return errors.New("invalid config: DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.DedupTrimCount > c.DedupMaxEntries {
		return errors.New("invalid config: DEDUP_TRIM_COUNT must not exceed DEDUP_MAX_ENTRIES")
	}
	if _, err := time.LoadLocation(c.QueueTimezone); err != nil {
		return fmt.Errorf("invalid config: QUEUE_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the timezone queue days are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QueueTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
