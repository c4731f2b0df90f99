package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffConfig configures retry delays.
type BackoffConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`
	// MaxDelay caps every computed delay.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`
	// Factor is the multiplier applied per attempt.
	Factor float64 `yaml:"factor" mapstructure:"factor" validate:"gte=0"`
	// Jitter adds up to Jitter*delay of random extra wait (0.0 to 1.0).
	Jitter float64 `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
	// DefaultRetryAfter is the wait after a 429 that carries no usable
	// Retry-After. Zero uses the exponential delay.
	DefaultRetryAfter time.Duration `yaml:"default_retry_after" mapstructure:"default_retry_after" validate:"gte=0"`
}

// DefaultBackoffConfig returns sensible defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2.0,
		Jitter:      0.1,
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *BackoffConfig) ApplyDefaults() {
	d := DefaultBackoffConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.Factor < 1 {
		c.Factor = d.Factor
	}
}

// Backoff computes retry delays. It is stateless and safe for concurrent use.
type Backoff struct {
	config BackoffConfig
	rand   func() float64
}

// NewBackoff creates a backoff policy.
func NewBackoff(config BackoffConfig) *Backoff {
	config.ApplyDefaults()
	return &Backoff{config: config, rand: rand.Float64}
}

// MaxAttempts returns the attempt ceiling.
func (b *Backoff) MaxAttempts() int {
	return b.config.MaxAttempts
}

// CanRetry reports whether another attempt is allowed after `attempts` attempts.
func (b *Backoff) CanRetry(attempts int) bool {
	return attempts < b.config.MaxAttempts
}

// Next returns the delay before retry number attempt (0-based).
// A positive hint is a server-stated wait and is returned unchanged.
func (b *Backoff) Next(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	base := b.Base(attempt)
	if b.config.Jitter <= 0 {
		return base
	}
	delay := float64(base) + b.rand()*b.config.Jitter*float64(base)
	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}
	return time.Duration(delay)
}

// Base returns the capped exponential delay for attempt without jitter.
func (b *Backoff) Base(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.config.BaseDelay) * math.Pow(b.config.Factor, float64(attempt))
	if math.IsInf(delay, 0) || delay > float64(b.config.MaxDelay) {
		return b.config.MaxDelay
	}
	return time.Duration(delay)
}
