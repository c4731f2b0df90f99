package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanChat/ubiquitous-octo-pancake/component"
	"github.com/IshaanChat/ubiquitous-octo-pancake/config"
	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
)

type testConfig struct {
	config.ServiceConfig
	Endpoint string
}

func (c *testConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	return nil
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.HealthStatus
	events   *[]string
	mu       sync.Mutex
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(context.Context) error {
	m.record("start:" + m.name)
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	m.record("stop:" + m.name)
	return m.stopErr
}

func (m *mockComponent) Health(context.Context) component.Health {
	status := m.health
	if status == "" {
		status = component.StatusHealthy
	}
	return component.Health{Name: m.name, Status: status}
}

func (m *mockComponent) Describe() component.Description {
	return component.Description{Name: m.name, Type: "mock"}
}

func (m *mockComponent) record(e string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events != nil {
		*m.events = append(*m.events, e)
	}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "snowctl", Version: "1.2.3"}, Endpoint: "x"}
	app, err := NewApp(cfg, WithLogger(logger.Nop()), WithSignals(), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "snowctl" || app.Version != "1.2.3" {
		t.Errorf("name/version = %q/%q", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("defaults not applied: %+v", app.Cfg.ServiceConfig)
	}
	if app.Components == nil || app.Logger == nil {
		t.Error("expected registry and logger")
	}
}

func TestNewApp_ValidationUsesOverride(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "snowctl"}}
	_, err := NewApp(cfg, WithLogger(logger.Nop()))
	if err == nil || !strings.Contains(err.Error(), "endpoint is required") {
		t.Errorf("expected endpoint validation error, got %v", err)
	}

	_, err = NewApp(&testConfig{Endpoint: "x"}, WithLogger(logger.Nop()))
	if err == nil || !strings.Contains(err.Error(), "name") {
		t.Errorf("expected name validation error, got %v", err)
	}
}

func TestRunTask_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	var events []string
	for _, name := range []string{"redis", "httpclient"} {
		if err := app.RegisterComponent(&mockComponent{name: name, events: &events}); err != nil {
			t.Fatal(err)
		}
	}
	app.OnStart(func(context.Context) error { events = append(events, "hook:start"); return nil })
	app.OnStop(func(context.Context) error { events = append(events, "hook:stop"); return nil })

	err := app.RunTask(context.Background(), func(context.Context) error {
		events = append(events, "task")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"start:redis", "start:httpclient", "hook:start", "task", "hook:stop", "stop:httpclient", "stop:redis"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v\nwant     %v", events, want)
	}
}

func TestRunTask_TaskErrorWins(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "c", stopErr: errors.New("stop failed")})

	taskErr := errors.New("task failed")
	if err := app.RunTask(context.Background(), func(context.Context) error { return taskErr }); !errors.Is(err, taskErr) {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestRunTask_StopErrorReported(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "c", stopErr: errors.New("stop failed")})

	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "stop failed") {
		t.Errorf("expected stop error, got %v", err)
	}
}

func TestRunTask_StartFailure(t *testing.T) {
	app := newTestApp(t)
	var events []string
	_ = app.RegisterComponent(&mockComponent{name: "a", events: &events})
	_ = app.RegisterComponent(&mockComponent{name: "b", events: &events, startErr: errors.New("unreachable")})

	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error { ran = true; return nil })
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("expected start error, got %v", err)
	}
	if ran {
		t.Error("task ran after a failed start")
	}
	if events[len(events)-1] != "stop:a" {
		t.Errorf("started component not stopped: %v", events)
	}
}

func TestRunTask_StartHookFailureStopsComponents(t *testing.T) {
	app := newTestApp(t)
	var events []string
	_ = app.RegisterComponent(&mockComponent{name: "a", events: &events})
	app.OnStart(func(context.Context) error { return errors.New("hook failed") })

	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "hook failed") {
		t.Errorf("expected hook error, got %v", err)
	}
	if len(events) != 2 || events[1] != "stop:a" {
		t.Errorf("events = %v", events)
	}
}

func TestRunTask_ContextCancel(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "ok"})
	_ = app.RegisterComponent(&mockComponent{name: "pool", health: component.StatusDegraded})

	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "pool=degraded") {
		t.Errorf("ReadyCheck() = %v", err)
	}
}
