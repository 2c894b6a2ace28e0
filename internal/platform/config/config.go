// Package config loads server configuration from the environment. An
// optional .env file in the working directory is read first.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backend names accepted by CREDENTIALS_STORAGE.
const (
	StorageLocal  = "local"
	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Server captures all process level configuration.
type Server struct {
	Addr           string        `envconfig:"CREDENTIALS_ADDR" default:":8080"`
	Environment    string        `envconfig:"CREDENTIALS_ENV" default:"development"`
	LogLevel       string        `envconfig:"CREDENTIALS_LOG_LEVEL" default:"info"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	RequestTimeout time.Duration `envconfig:"CREDENTIALS_REQUEST_TIMEOUT" default:"10s"`

	Storage Storage
	Kafka   Kafka

	SignatoryImageMaxBytes int64 `envconfig:"CREDENTIALS_SIGNATORY_IMAGE_MAX_BYTES" default:"256000"`
}

// Storage selects and configures the file backend for images and assets.
type Storage struct {
	Backend  string `envconfig:"CREDENTIALS_STORAGE" default:"local"`
	Dir      string `envconfig:"CREDENTIALS_STORAGE_DIR" default:"./media"`
	Bucket   string `envconfig:"CREDENTIALS_S3_BUCKET"`
	Prefix   string `envconfig:"CREDENTIALS_S3_PREFIX"`
	Region   string `envconfig:"CREDENTIALS_S3_REGION" default:"us-east-1"`
	Endpoint string `envconfig:"CREDENTIALS_S3_ENDPOINT"`
}

// Kafka configures the credential event publisher. No brokers means events
// are only logged.
type Kafka struct {
	Brokers []string `envconfig:"CREDENTIALS_KAFKA_BROKERS"`
	Topic   string   `envconfig:"CREDENTIALS_KAFKA_TOPIC" default:"credential-events"`
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return Server{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c Server) Validate() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.Dir == "" {
			return errors.New("CREDENTIALS_STORAGE_DIR is required for local storage")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("CREDENTIALS_S3_BUCKET is required for s3 storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.SignatoryImageMaxBytes <= 0 {
		return errors.New("CREDENTIALS_SIGNATORY_IMAGE_MAX_BYTES must be positive")
	}
	return nil
}

func (c Server) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}
