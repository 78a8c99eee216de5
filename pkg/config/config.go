package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	QueueDriverSQS    = "sqs"
	QueueDriverMemory = "memory"
)

type Config struct {
	Port      string `env:"PORT,default=8080"`
	Env       string `env:"ENV,default=development"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	PostgresConnStr string `env:"POSTGRES_CONN_STR"`
	MongoURI        string `env:"MONGO_URI"`
	MongoDatabase   string `env:"MONGO_DATABASE,default=socialmedia"`

	FirebaseCredentialsPath string `env:"FIREBASE_CREDENTIALS_PATH"`
	FirebaseEnabled         bool   `env:"FIREBASE_ENABLED,default=false"`

	Queue    QueueConfig
	Jobs     JobsConfig
	Delivery DeliveryConfig
}

// QueueConfig drives the managed broker consumer (Transport A)
type QueueConfig struct {
	Driver                 string        `env:"QUEUE_DRIVER,default=sqs"`
	AWSRegion              string        `env:"AWS_REGION,default=us-east-1"`
	URL                    string        `env:"SQS_QUEUE_URL"`
	BatchSize              int           `env:"QUEUE_BATCH_SIZE,default=10"`
	WaitTime               time.Duration `env:"QUEUE_WAIT_TIME,default=20s"`
	VisibilityTimeout      time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=300s"`
	CheckVisibilityTimeout time.Duration `env:"QUEUE_CHECK_VISIBILITY_TIMEOUT,default=30s"`
	PollInterval           time.Duration `env:"QUEUE_POLL_INTERVAL,default=10s"`
	InitialDelay           time.Duration `env:"QUEUE_INITIAL_DELAY,default=1s"`
	MaxReceives            int           `env:"QUEUE_MAX_RECEIVES,default=5"`
	WatchdogInterval       time.Duration `env:"WATCHDOG_INTERVAL,default=60s"`
	StallThreshold         time.Duration `env:"WATCHDOG_STALL_THRESHOLD,default=300s"`
}

// JobsConfig drives the Redis-backed job queue (Transport B)
type JobsConfig struct {
	Enabled       bool          `env:"JOBS_ENABLED,default=false"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	Concurrency   int           `env:"JOBS_CONCURRENCY,default=10"`
	Retention     time.Duration `env:"JOBS_RETENTION,default=24h"`
	MaxRetry      int           `env:"JOBS_MAX_RETRY,default=5"`
}

// DeliveryConfig tunes the fan-out
type DeliveryConfig struct {
	Workers           int           `env:"DELIVERY_WORKERS,default=16"`
	ChunkSize         int           `env:"DELIVERY_CHUNK_SIZE,default=100"`
	ChunkPause        time.Duration `env:"DELIVERY_CHUNK_PAUSE,default=10ms"`
	PushRatePerSecond int           `env:"PUSH_RATE_PER_SECOND,default=500"`
}

// Load reads .env (if present) and the process environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, assuming environment variables are set.")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI environment variable not set")
	}
	if c.PostgresConnStr == "" {
		return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	switch c.Queue.Driver {
	case QueueDriverSQS:
		if c.Queue.URL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required when QUEUE_DRIVER=%s", QueueDriverSQS)
		}
	case QueueDriverMemory:
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.Queue.BatchSize < 1 || c.Queue.BatchSize > 10 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be between 1 and 10, got %d", c.Queue.BatchSize)
	}
	if c.Queue.VisibilityTimeout < 30*time.Second {
		return fmt.Errorf("QUEUE_VISIBILITY_TIMEOUT must be at least 30s")
	}
	if c.FirebaseEnabled && c.FirebaseCredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when FIREBASE_ENABLED=true")
	}
	if c.Delivery.ChunkSize < 1 {
		return fmt.Errorf("DELIVERY_CHUNK_SIZE must be positive")
	}
	return nil
}
