package httpclient

import (
	"context"
	"fmt"

	"github.com/IshaanChat/ubiquitous-octo-pancake/component"
)

// Component manages a Client's lifecycle in a component.Registry.
type Component struct {
	client *Client
	config Config
	opts   []Option
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a component. The client is created in Start.
func NewComponent(cfg Config, opts ...Option) *Component {
	cfg.ApplyDefaults()
	return &Component{config: cfg, opts: opts}
}

// Name returns the component name.
func (c *Component) Name() string {
	return c.config.Name
}

// Start creates the client.
func (c *Component) Start(_ context.Context) error {
	client, err := New(c.config, c.opts...)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

// Stop closes the client.
func (c *Component) Stop(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close(ctx)
}

// Health reports whether the client is accepting requests.
func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.client == nil:
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	case c.client.IsClosed():
		h.Status = component.StatusUnhealthy
		h.Message = "closed"
	case c.client.InFlight() >= c.config.Pool.MaxConns:
		h.Status = component.StatusDegraded
		h.Message = "connection pool saturated"
	}
	return h
}

// Describe summarizes the client configuration.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name: c.Name(),
		Type: "httpclient",
		Details: fmt.Sprintf("%s pool=%d window=%d/%v attempts=%d",
			c.config.BaseURL, c.config.Pool.MaxConns,
			c.config.RateLimit.MaxRequests, c.config.RateLimit.Window,
			c.config.Retry.MaxAttempts),
	}
}

// Client returns the client. It is nil before Start.
func (c *Component) Client() *Client {
	return c.client
}
