package prefixcode

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration. Zero values are filled
// with defaults by normalize, so a partially populated Config (or a
// partial YAML document) is fine.
type Config struct {
	// Store selects and configures model persistence.
	Store StoreConfig `yaml:"store"`

	// HTTP configures the HTTP API server.
	HTTP HTTPConfig `yaml:"http"`

	// Stream configures the WebSocket streaming API.
	Stream StreamConfig `yaml:"stream"`

	// Encryption configures payload encryption. Nil disables encryption.
	Encryption *EncryptionConfig `yaml:"encryption,omitempty"`

	// Advisor configures the compression advisor.
	Advisor CompressionAdvisorConfig `yaml:"advisor"`

	// DefaultModel is the model name assumed by requests that omit one.
	// The server seeds this model from the built-in English letter table
	// when the store does not already hold it.
	// Default: english-letters.
	DefaultModel string `yaml:"default_model,omitempty"`
}

// StoreConfig selects and configures the model store backend.
type StoreConfig struct {
	// Backend is the store implementation: memory, file, sqlite or s3.
	// Default: memory.
	Backend string `yaml:"backend"`

	// Dir is the document directory for the file backend.
	Dir string `yaml:"dir,omitempty"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteModelStoreConfig `yaml:"sqlite,omitempty"`

	// S3 configures the s3 backend.
	S3 S3ModelStoreConfig `yaml:"s3,omitempty"`
}

// HTTPConfig configures the HTTP API server.
type HTTPConfig struct {
	// Enabled enables the HTTP API server.
	// Default: false.
	Enabled bool `yaml:"enabled"`

	// Host is the listen address for the HTTP API server.
	// Default: 127.0.0.1.
	Host string `yaml:"host,omitempty"`

	// Port is the port for the HTTP API server.
	// Default: 8095.
	Port int `yaml:"port,omitempty"`

	// RateLimitPerSecond is the maximum number of requests per second
	// accepted from a single client IP. 0 disables rate limiting.
	// Default: 1000.
	RateLimitPerSecond int `yaml:"rate_limit_per_second"`

	// MaxBodyBytes caps the size of request bodies.
	// Default: 10485760 (10 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`

	// Auth configures API authentication. Nil disables authentication.
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig configures HTTP API authentication.
type AuthConfig struct {
	// Enabled enables authentication on HTTP endpoints.
	Enabled bool `yaml:"enabled"`

	// APIKeys is a list of valid API keys. At least one must be provided if Enabled is true.
	APIKeys []string `yaml:"api_keys,omitempty"`

	// ReadOnlyKeys is a list of API keys that cannot modify stored models.
	// These keys can still encode, decode and advise.
	ReadOnlyKeys []string `yaml:"read_only_keys,omitempty"`

	// ExcludePaths are paths that don't require authentication (e.g., /health).
	ExcludePaths []string `yaml:"exclude_paths,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend: "memory",
		},
		HTTP: HTTPConfig{
			Enabled:            false,
			Host:               "127.0.0.1",
			Port:               8095,
			RateLimitPerSecond: 1000,
			MaxBodyBytes:       10 * 1024 * 1024,
		},
		Stream:       DefaultStreamConfig(),
		Advisor:      DefaultCompressionAdvisorConfig(),
		DefaultModel: EnglishModelName,
	}
}

// normalize fills zero values with defaults.
func (c *Config) normalize() {
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8095
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 10 * 1024 * 1024
	}
	if c.Stream.MaxMessageBytes <= 0 {
		c.Stream.MaxMessageBytes = DefaultStreamConfig().MaxMessageBytes
	}
	if c.Stream.WriteTimeout <= 0 {
		c.Stream.WriteTimeout = DefaultStreamConfig().WriteTimeout
	}
	if c.Stream.PingInterval <= 0 {
		c.Stream.PingInterval = DefaultStreamConfig().PingInterval
	}
	if c.Stream.MaxSessions <= 0 {
		c.Stream.MaxSessions = DefaultStreamConfig().MaxSessions
	}
	if c.Advisor.SampleLimit <= 0 {
		c.Advisor.SampleLimit = DefaultCompressionAdvisorConfig().SampleLimit
	}
	if c.Advisor.MinGainPct <= 0 {
		c.Advisor.MinGainPct = DefaultCompressionAdvisorConfig().MinGainPct
	}
	if c.DefaultModel == "" {
		c.DefaultModel = EnglishModelName
	}
}

// Validate checks the configuration for settings that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "memory", "sqlite":
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("file store requires a directory")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("s3 store requires a bucket")
		}
	default:
		return fmt.Errorf("unknown model store backend: %q", c.Store.Backend)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimitPerSecond < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	if c.HTTP.Auth != nil && c.HTTP.Auth.Enabled &&
		len(c.HTTP.Auth.APIKeys) == 0 && len(c.HTTP.Auth.ReadOnlyKeys) == 0 {
		return fmt.Errorf("authentication enabled but no API keys configured")
	}
	if c.Encryption != nil && c.Encryption.Enabled &&
		len(c.Encryption.Key) == 0 && c.Encryption.KeyPassword == "" {
		return fmt.Errorf("encryption enabled but no key or key password configured")
	}
	return nil
}

// LoadConfig reads a YAML configuration file. Settings absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
