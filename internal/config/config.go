// Package config centralises configuration parsing for the records API and the
// tracker client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Local store backends understood by the client.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config captures runtime configuration values.
type Config struct {
	HTTPAddress        string        `yaml:"http_address"`
	PostgresURL        string        `yaml:"postgres_url"`  // empty keeps records in memory
	KafkaBrokers       []string      `yaml:"kafka_brokers"` // empty disables the outbox dispatcher
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxLease        time.Duration `yaml:"outbox_lease"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTIssuer          string        `yaml:"jwt_issuer"`
	MetricsAddress     string        `yaml:"metrics_address"`
	ConsumerGroupID    string        `yaml:"consumer_group_id"`
	ConsumerTopics     []string      `yaml:"consumer_topics"`
	Client             Client        `yaml:"client"`
}

// Client configures the tracker CLI.
type Client struct {
	RemoteURL     string        `yaml:"remote_url"` // empty keeps every change local-only
	Token         string        `yaml:"token"`
	DataDir       string        `yaml:"data_dir"`
	Store         string        `yaml:"store"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	cfg := Config{
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8080"),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		OutboxLease:        getDurationEnv("OUTBOX_LEASE", time.Minute),
		OutboxMaxAttempts:  getIntEnv("OUTBOX_MAX_ATTEMPTS", 10),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "fittracker.identity"),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9102"),
		ConsumerGroupID:    getEnv("CONSUMER_GROUP_ID", "fittracker-personal-bests"),
		Client: Client{
			RemoteURL:     getEnv("FITTRACKER_REMOTE_URL", ""),
			Token:         getEnv("FITTRACKER_TOKEN", ""),
			DataDir:       getEnv("FITTRACKER_DATA_DIR", defaultDataDir()),
			Store:         getEnv("FITTRACKER_STORE", StoreBadger),
			RemoteTimeout: getDurationEnv("FITTRACKER_REMOTE_TIMEOUT", 10*time.Second),
		},
	}

	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", ""))
	cfg.ConsumerTopics = splitAndTrim(getEnv("CONSUMER_TOPICS", "fittracker.records"))
	return cfg
}

// LoadFile reads the environment and then overlays the YAML document at path.
// Keys missing from the file keep their environment or default value.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateServer reports every setting the records API cannot start without.
func (c Config) ValidateServer() error {
	var errs []error
	if c.HTTPAddress == "" {
		errs = append(errs, errors.New("http_address is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if len(c.KafkaBrokers) > 0 && c.PostgresURL == "" {
		errs = append(errs, errors.New("kafka_brokers requires postgres_url"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox_batch_size must be > 0"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox_poll_interval must be > 0"))
	}
	return errors.Join(errs...)
}

// ValidateConsumer reports every setting the record-events consumer needs.
func (c Config) ValidateConsumer() error {
	var errs []error
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("kafka_brokers is required"))
	}
	if len(c.ConsumerTopics) == 0 {
		errs = append(errs, errors.New("consumer_topics is required"))
	}
	if c.ConsumerGroupID == "" {
		errs = append(errs, errors.New("consumer_group_id is required"))
	}
	return errors.Join(errs...)
}

// ValidateClient reports every client setting that cannot be used.
func (c Config) ValidateClient() error {
	var errs []error
	switch c.Client.Store {
	case StoreBadger, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store must be %s, %s or %s, got %q", StoreBadger, StoreSQLite, StoreMemory, c.Client.Store))
	}
	if c.Client.Store != StoreMemory && c.Client.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Client.RemoteURL != "" && c.Client.Token == "" {
		errs = append(errs, errors.New("token is required when remote_url is set"))
	}
	return errors.Join(errs...)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fittracker"
	}
	return filepath.Join(home, ".fittracker")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
