package redis

import (
	"time"

	"github.com/IshaanChat/ubiquitous-octo-pancake/validation"
)

const defaultKeyPrefix = "snow:ratelimit"

// Config holds Redis connection configuration.
type Config struct {
	// Enabled switches the shared rate limiter on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Addr is the server address (host:port).
	Addr string `yaml:"addr" mapstructure:"addr"`
	// Username and Password authenticate with ACLs or requirepass.
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	// DB is the database number.
	DB int `yaml:"db" mapstructure:"db" validate:"gte=0"`

	// KeyPrefix namespaces the limiter keys. Defaults to "snow:ratelimit".
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`

	// PoolSize is the maximum number of socket connections. Defaults to 10.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size" validate:"gte=0"`
	// MinIdleConns keeps this many idle connections open. Defaults to 2.
	MinIdleConns int `yaml:"min_idle_conns" mapstructure:"min_idle_conns" validate:"gte=0"`
	// MaxRetries is the number of command retries. Defaults to 3.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// DialTimeout defaults to 5s.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// ReadTimeout defaults to 3s.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// WriteTimeout defaults to 3s.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	return validation.New().
		Required("addr", c.Addr).
		Required("key_prefix", c.KeyPrefix).
		Err()
}
