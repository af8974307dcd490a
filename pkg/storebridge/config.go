package storebridge

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ripplekit/storebridge/internal/backend"
	"github.com/ripplekit/storebridge/internal/outbox"
)

// Config is the root configuration for a storage bridge.
type Config struct {
	// Tiers selects and configures the storage tiers, probed in the
	// fixed order local, async, durable, server. A tier without
	// configuration is skipped.
	Tiers TiersConfig `yaml:"tiers" json:"tiers"`

	// Cache configures the query result cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Conflict configures sync conflict resolution.
	Conflict ConflictConfig `yaml:"conflict" json:"conflict"`

	// Outbox configures the committed-change event feed.
	Outbox OutboxConfig `yaml:"outbox" json:"outbox"`

	// BatchSize is the advisory batch size reported to callers.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
}

// TiersConfig configures the storage tiers by probe order.
type TiersConfig struct {
	// Memory enables the in-process memory tier ahead of every other
	// tier. Intended for tests and development.
	Memory bool `yaml:"memory,omitempty" json:"memory,omitempty"`

	// Local is the path for the embedded SQLite database. Empty skips
	// the tier.
	Local string `yaml:"local,omitempty" json:"local,omitempty"`

	// Async configures the Redis tier. Nil skips the tier.
	Async *backend.RedisConfig `yaml:"async,omitempty" json:"async,omitempty"`

	// Durable configures the DynamoDB tier. Nil skips the tier.
	Durable *backend.DynamoDBConfig `yaml:"durable,omitempty" json:"durable,omitempty"`

	// Server configures the MySQL tier. Nil skips the tier.
	Server *backend.MySQLConfig `yaml:"server,omitempty" json:"server,omitempty"`
}

// CacheConfig configures the query result cache.
type CacheConfig struct {
	// MaxSize bounds the number of cached query results.
	MaxSize int `yaml:"max_size" json:"max_size"`

	// TTL bounds cached result lifetime.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// ConflictConfig configures sync conflict resolution.
type ConflictConfig struct {
	// Strategy is the fallback verdict once the built-in policy ties:
	// "ACCEPT_REMOTE" or "RETRY_LOCAL".
	Strategy string `yaml:"strategy" json:"strategy"`
}

// OutboxConfig configures the committed-change event feed.
type OutboxConfig struct {
	// Enabled turns the outbox on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// QueueType selects the queue implementation: "memory" (default) or
	// "kafka".
	QueueType string `yaml:"queue_type,omitempty" json:"queue_type,omitempty"`

	// BufferSize is the in-memory queue capacity. Only used when
	// QueueType is "memory".
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`

	// Kafka configures the Kafka queue. Only used when QueueType is
	// "kafka".
	Kafka outbox.KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`

	// Drainer configures the rate-limited event forwarder.
	Drainer outbox.DrainerConfig `yaml:"drainer,omitempty" json:"drainer,omitempty"`
}

// DefaultConfig returns a configuration with every default applied and no
// tier configured, which binds the in-process memory tier.
func DefaultConfig() *Config {
	cfg := &Config{Tiers: TiersConfig{Memory: true}}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 100
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Conflict.Strategy == "" {
		c.Conflict.Strategy = "ACCEPT_REMOTE"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	if c.Outbox.QueueType == "" {
		c.Outbox.QueueType = "memory"
	}
	if c.Outbox.BufferSize == 0 {
		c.Outbox.BufferSize = 1024
	}
}

func (c *Config) validate() error {
	switch c.Conflict.Strategy {
	case "ACCEPT_REMOTE", "RETRY_LOCAL":
	default:
		return fmt.Errorf("invalid conflict strategy %q", c.Conflict.Strategy)
	}
	switch c.Outbox.QueueType {
	case "memory":
	case "kafka":
		if len(c.Outbox.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka outbox requires at least one broker")
		}
	default:
		return fmt.Errorf("invalid outbox queue type %q", c.Outbox.QueueType)
	}
	return nil
}

// factories assembles the backend factory chain in probe order.
func (c *Config) factories() []selectorFactory {
	var out []selectorFactory
	if c.Tiers.Memory {
		out = append(out, backend.MemoryFactory())
	}
	if c.Tiers.Local != "" {
		out = append(out, backend.SQLiteFactory(c.Tiers.Local))
	}
	if c.Tiers.Async != nil {
		out = append(out, backend.RedisFactory(*c.Tiers.Async))
	}
	if c.Tiers.Durable != nil {
		out = append(out, backend.DynamoDBFactory(*c.Tiers.Durable))
	}
	if c.Tiers.Server != nil {
		out = append(out, backend.MySQLFactory(*c.Tiers.Server))
	}
	return out
}
