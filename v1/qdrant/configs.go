package qdrant

import (
	"context"
	"time"
)

// Config holds connection and behavior settings for the pooled Qdrant client.
//
// It is intentionally minimal, readable, and easy to override from environment
// variables, YAML, or programmatically via helper methods.
//
// Example (programmatic):
//
//	cfg := qdrant.DefaultConfig()
//	cfg.Endpoint = "localhost"
//	cfg.APIKey = os.Getenv("QDRANT_API_KEY")
//	cfg.Timeout = 10 * time.Second
//
// Example (builder style):
//
//	cfg := qdrant.FromEndpoint("localhost").
//	    WithAPIKey(os.Getenv("QDRANT_API_KEY")).
//	    WithPoolSize(8)
type Config struct {
	// Hostname of the Qdrant server, e.g. "localhost".
	Endpoint string `yaml:"endpoint" env:"QDRANT_ENDPOINT"`

	// gRPC port of the Qdrant server. Defaults to 6334.
	Port int `yaml:"port" env:"QDRANT_PORT"`

	// Optional authentication token for secured deployments.
	APIKey string `yaml:"api_key" env:"QDRANT_API_KEY"`

	// Whether to connect over TLS.
	UseTLS bool `yaml:"use_tls" env:"QDRANT_USE_TLS"`

	// Number of pooled gRPC client handles. Defaults to 4.
	PoolSize int `yaml:"pool_size" env:"QDRANT_POOL_SIZE"`

	// Maximum request duration before timing out.
	Timeout time.Duration `yaml:"timeout" env:"QDRANT_TIMEOUT"`

	// Connection establishment timeout.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"QDRANT_CONNECT_TIMEOUT"`

	// Interval between background health probes. Zero disables the
	// background repair loop; HealthCheckAll and ReconnectUnhealthy stay
	// available for manual use.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"QDRANT_HEALTH_CHECK_INTERVAL"`

	// Whether to keep idle connections open for reuse.
	KeepAlive bool `yaml:"keep_alive" env:"QDRANT_KEEP_ALIVE"`

	// Whether to perform version compatibility checks between client and server.
	CheckCompatibility bool `yaml:"check_compatibility" env:"QDRANT_CHECK_COMPATIBILITY"`
}

// DefaultConfig provides sensible defaults for most use cases.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:            "localhost",
		Port:                6334,
		PoolSize:            4,
		Timeout:             5 * time.Second,
		ConnectTimeout:      5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		KeepAlive:           true,
		CheckCompatibility:  true,
	}
}

// FromEndpoint returns a default config pre-filled with a specific endpoint.
func FromEndpoint(host string) *Config {
	cfg := DefaultConfig()
	cfg.Endpoint = host
	return cfg
}

// withDefaults fills zero values with the package defaults.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.Endpoint == "" {
		out.Endpoint = def.Endpoint
	}
	if out.Port == 0 {
		out.Port = def.Port
	}
	if out.PoolSize <= 0 {
		out.PoolSize = def.PoolSize
	}
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = def.ConnectTimeout
	}
	return &out
}

// Builder-style helpers (optional, ergonomic)
func (c *Config) WithAPIKey(key string) *Config {
	c.APIKey = key
	return c
}

func (c *Config) WithPort(port int) *Config {
	c.Port = port
	return c
}

func (c *Config) WithPoolSize(n int) *Config {
	c.PoolSize = n
	return c
}

func (c *Config) WithTimeout(d time.Duration) *Config {
	c.Timeout = d
	return c
}

func (c *Config) WithConnectTimeout(d time.Duration) *Config {
	c.ConnectTimeout = d
	return c
}

func (c *Config) WithHealthCheckInterval(d time.Duration) *Config {
	c.HealthCheckInterval = d
	return c
}

func (c *Config) WithTLS(enabled bool) *Config {
	c.UseTLS = enabled
	return c
}

func (c *Config) WithKeepAlive(enabled bool) *Config {
	c.KeepAlive = enabled
	return c
}

func (c *Config) WithCompatibilityCheck(enabled bool) *Config {
	c.CheckCompatibility = enabled
	return c
}

// CredentialsProvider supplies an API token per dial, overriding the static
// Config.APIKey. Token lifecycle (rotation, caching, refresh) stays with the
// provider; the pool only asks for the current token when it dials.
type CredentialsProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredentials is a CredentialsProvider returning a fixed token.
type StaticCredentials string

func (s StaticCredentials) Token(context.Context) (string, error) {
	return string(s), nil
}
