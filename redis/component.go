package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IshaanChat/ubiquitous-octo-pancake/component"
	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
	"github.com/IshaanChat/ubiquitous-octo-pancake/resilience"
)

// ErrNotStarted is returned by a component limiter used before Start.
var ErrNotStarted = errors.New("redis component not started")

// Component manages a Client in a component.Registry.
type Component struct {
	client *Client
	cfg    Config
	log    *logger.Logger
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a Redis component. The client is created in Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client returns the client, or nil before Start.
func (c *Component) Client() *Client {
	return c.client
}

// Name returns the component name.
func (c *Component) Name() string { return "redis" }

// Start creates the client and verifies connectivity.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("redis start: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis start: %w", err)
	}
	c.client = client
	c.log.Info("redis connected", logger.Fields("addr", c.cfg.Addr))
	return nil
}

// Stop closes the connection.
func (c *Component) Stop(_ context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health pings the server.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.client == nil {
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
		return h
	}
	if err := c.client.Ping(ctx); err != nil {
		h.Status = component.StatusUnhealthy
		h.Message = err.Error()
	}
	return h
}

// Describe summarizes the connection.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.Name(),
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d prefix=%s", c.cfg.Addr, c.cfg.DB, c.cfg.KeyPrefix),
	}
}

// Limiter returns an admitter that uses a SlidingWindow on this component's
// client. It can be handed to other components before Start has run; it
// fails with ErrNotStarted until then.
func (c *Component) Limiter(cfg resilience.WindowConfig) resilience.Admitter {
	return &componentLimiter{comp: c, cfg: cfg}
}

type componentLimiter struct {
	comp   *Component
	cfg    resilience.WindowConfig
	once   sync.Once
	window *SlidingWindow
}

func (l *componentLimiter) Admit(ctx context.Context) error {
	client := l.comp.Client()
	if client == nil {
		return ErrNotStarted
	}
	l.once.Do(func() { l.window = NewSlidingWindow(client, l.cfg) })
	return l.window.Admit(ctx)
}
