package httpclient

import (
	"time"

	"github.com/IshaanChat/ubiquitous-octo-pancake/resilience"
	"github.com/IshaanChat/ubiquitous-octo-pancake/validation"
	"github.com/IshaanChat/ubiquitous-octo-pancake/version"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultChunkSize   = 32 << 10
	defaultMaxLineSize = 1 << 20
	maxErrorBody       = 1 << 20
)

// Config configures the HTTP client.
type Config struct {
	// Name identifies the client in logs and the component registry.
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is prepended to request paths that are not absolute URLs.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds each attempt. For streams it bounds the wait for
	// response headers only. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every request. Defaults to "<name>/<version>".
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// TLS configures TLS settings for the HTTP transport.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// Retry configures attempts and backoff.
	Retry resilience.BackoffConfig `yaml:"retry" mapstructure:"retry"`

	// RateLimit configures the in-process sliding window. It is replaced
	// when a limiter is supplied with WithLimiter.
	RateLimit resilience.WindowConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Pool configures connection limits.
	Pool PoolConfig `yaml:"pool" mapstructure:"pool"`

	// Stream configures response streaming.
	Stream StreamConfig `yaml:"stream" mapstructure:"stream"`

	// HTTP2 configures HTTP/2 connection health checks.
	HTTP2 HTTP2Config `yaml:"http2" mapstructure:"http2"`
}

// PoolConfig configures connection limits.
type PoolConfig struct {
	// MaxConns caps in-flight requests and open streams. Defaults to 10.
	MaxConns int `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	// MaxConnsPerHost caps transport connections per host. Defaults to MaxConns.
	MaxConnsPerHost int `yaml:"max_conns_per_host" mapstructure:"max_conns_per_host" validate:"gte=0"`
	// MaxIdleConns caps idle keep-alive connections. Defaults to 5.
	MaxIdleConns int `yaml:"max_idle_conns" mapstructure:"max_idle_conns" validate:"gte=0"`
	// IdleTimeout closes keep-alive connections idle this long. Defaults to 5s.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// AcquireTimeout bounds the wait for a pool slot. Zero waits until the
	// request context ends.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" mapstructure:"acquire_timeout"`
}

// StreamConfig configures response streaming.
type StreamConfig struct {
	// ChunkSize is the largest chunk Stream.Next returns. Defaults to 32 KiB.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=0"`
	// MaxLineSize is the longest line Stream.NextLine accepts. Defaults to 1 MiB.
	MaxLineSize int `yaml:"max_line_size" mapstructure:"max_line_size" validate:"gte=0"`
}

// HTTP2Config configures HTTP/2 pings on idle connections so that long
// streams over dead connections fail instead of hanging.
type HTTP2Config struct {
	// Disabled turns off the HTTP/2 transport configuration.
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`
	// ReadIdleTimeout sends a ping after this long without frames. Defaults to 30s.
	ReadIdleTimeout time.Duration `yaml:"read_idle_timeout" mapstructure:"read_idle_timeout"`
	// PingTimeout closes the connection if a ping is not answered in time. Defaults to 15s.
	PingTimeout time.Duration `yaml:"ping_timeout" mapstructure:"ping_timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "httpclient"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = version.UserAgent(c.Name)
	}
	c.Retry.ApplyDefaults()
	if c.RateLimit.Name == "" {
		c.RateLimit.Name = c.Name
	}
	c.RateLimit.ApplyDefaults()

	if c.Pool.MaxConns <= 0 {
		c.Pool.MaxConns = 10
	}
	if c.Pool.MaxConnsPerHost <= 0 {
		c.Pool.MaxConnsPerHost = c.Pool.MaxConns
	}
	if c.Pool.MaxIdleConns <= 0 {
		c.Pool.MaxIdleConns = 5
	}
	if c.Pool.IdleTimeout <= 0 {
		c.Pool.IdleTimeout = 5 * time.Second
	}

	if c.Stream.ChunkSize <= 0 {
		c.Stream.ChunkSize = defaultChunkSize
	}
	if c.Stream.MaxLineSize <= 0 {
		c.Stream.MaxLineSize = defaultMaxLineSize
	}

	if c.HTTP2.ReadIdleTimeout <= 0 {
		c.HTTP2.ReadIdleTimeout = 30 * time.Second
	}
	if c.HTTP2.PingTimeout <= 0 {
		c.HTTP2.PingTimeout = 15 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New().
		HTTPURL("base_url", c.BaseURL).
		Positive("timeout", c.Timeout).
		Min("retry.max_attempts", c.Retry.MaxAttempts, 1).
		Min("rate_limit.max_requests", c.RateLimit.MaxRequests, 1).
		Positive("rate_limit.window", c.RateLimit.Window).
		Min("pool.max_conns", c.Pool.MaxConns, 1)
	if c.TLS != nil {
		v.Merge("tls", c.TLS.Validate())
	}
	return v.Err()
}
