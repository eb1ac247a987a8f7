package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8081"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	StoreDir     string `envconfig:"STORE_DIR" default:"data"`
	DynamoTable  string `envconfig:"DYNAMO_TABLE" default:"stock-ledger-snapshots"`
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`
	PgsqlURL     string `envconfig:"PGSQL_URL"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"stock-ledger-events"`

	OtelEndpoint string `envconfig:"OTEL_ENDPOINT"`

	LowStockThreshold   int           `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
	SaveMaxRetryElapsed time.Duration `envconfig:"SAVE_MAX_RETRY_ELAPSED" default:"30s"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendMemory, BackendFile, BackendDynamoDB:
	case BackendPostgres:
		if c.PgsqlURL == "" {
			return errors.New("PGSQL_URL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.LowStockThreshold <= 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must be positive, got %d", c.LowStockThreshold)
	}
	return nil
}

// Brokers splits the comma separated broker list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
