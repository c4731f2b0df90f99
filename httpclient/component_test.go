package httpclient

import (
	"context"
	"strings"
	"testing"

	"github.com/IshaanChat/ubiquitous-octo-pancake/component"
	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
)

func TestComponent_Lifecycle(t *testing.T) {
	ctx := context.Background()
	comp := NewComponent(Config{Name: "snow", BaseURL: "https://dev1.service-now.com"}, WithLogger(logger.Nop()))

	if comp.Name() != "snow" {
		t.Errorf("Name() = %q", comp.Name())
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %v", h.Status)
	}
	d := comp.Describe()
	if d.Type != "httpclient" || !strings.Contains(d.Details, "dev1.service-now.com") || !strings.Contains(d.Details, "pool=10") {
		t.Errorf("Describe() = %+v", d)
	}

	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if comp.Client() == nil {
		t.Fatal("Client() is nil after Start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy || h.Message != "closed" {
		t.Errorf("health after stop = %+v", h)
	}
}

func TestComponent_StartInvalidConfig(t *testing.T) {
	comp := NewComponent(Config{BaseURL: "not a url"})
	if err := comp.Start(context.Background()); err == nil {
		t.Error("expected start error")
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Errorf("Stop before successful Start: %v", err)
	}
}
