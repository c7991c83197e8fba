// ABOUTME: Configuration loading and parsing for fold-concierge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default timings, applied when the config file leaves them unset.
const (
	DefaultConversationTimeout = 10 * time.Minute
	DefaultConversationSweep   = 30 * time.Minute
	DefaultCacheTTL            = 15 * time.Minute
	DefaultCacheSweep          = 5 * time.Minute
)

// Config represents the complete fold-concierge configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Cache         CacheConfig         `yaml:"cache"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds the operations API listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the member profile database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration for the operations API
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ConversationsConfig holds linking-flow timing configuration
type ConversationsConfig struct {
	Timeout       time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw       string `yaml:"timeout"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// CacheConfig holds subscription cache configuration
type CacheConfig struct {
	TTL           time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TTLRaw           string `yaml:"ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`

	// CacheUnknown caches not-found lookups for the full TTL instead of
	// re-querying on every message from an unknown user
	CacheUnknown bool `yaml:"cache_unknown"`

	// SingleFlight coalesces concurrent misses for the same user into one
	// database query
	SingleFlight bool `yaml:"single_flight"`

	// PrewarmOnBillingEvent re-fetches a user's status right after a billing
	// event invalidates it
	PrewarmOnBillingEvent bool `yaml:"prewarm_on_billing_event"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in timing fields the file left at zero.
func (c *Config) applyDefaults() {
	if c.Conversations.Timeout == 0 {
		c.Conversations.Timeout = DefaultConversationTimeout
	}
	if c.Conversations.SweepInterval == 0 {
		c.Conversations.SweepInterval = DefaultConversationSweep
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = DefaultCacheSweep
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Conversations.Timeout < 0 {
		return fmt.Errorf("conversations.timeout must be positive")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Conversations.TimeoutRaw != "" {
		cfg.Conversations.Timeout, err = time.ParseDuration(cfg.Conversations.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing conversations.timeout %q: %w", cfg.Conversations.TimeoutRaw, err)
		}
	}

	if cfg.Conversations.SweepIntervalRaw != "" {
		cfg.Conversations.SweepInterval, err = time.ParseDuration(cfg.Conversations.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing conversations.sweep_interval %q: %w", cfg.Conversations.SweepIntervalRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	if cfg.Cache.SweepIntervalRaw != "" {
		cfg.Cache.SweepInterval, err = time.ParseDuration(cfg.Cache.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.sweep_interval %q: %w", cfg.Cache.SweepIntervalRaw, err)
		}
	}

	return nil
}
