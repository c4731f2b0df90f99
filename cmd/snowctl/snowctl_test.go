package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/IshaanChat/ubiquitous-octo-pancake/auth"
	apperrors "github.com/IshaanChat/ubiquitous-octo-pancake/errors"
)

const baseConfig = `
name: snowctl
logging:
  level: disabled
http:
  base_url: %s
  retry:
    max_attempts: 3
    base_delay: 1ms
    max_delay: 5ms
auth:
  type: basic
  basic:
    username: admin
    password: secret
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SERVICENOW_INSTANCE", "")
	t.Setenv("SERVICENOW_USERNAME", "")
	t.Setenv("SERVICENOW_PASSWORD", "")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "snowctl ") {
		t.Errorf("version output = %q", out)
	}
}

func TestRequestCommand(t *testing.T) {
	var gotQuery, gotUser, gotAgent, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("sysparm_limit")
		gotUser, _, _ = r.BasicAuth()
		gotAgent = r.UserAgent()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result":[{"number":"INC0010001"}]}`)
	}))
	defer srv.Close()
	cfg := writeConfig(t, fmt.Sprintf(baseConfig, srv.URL))

	out, err := runCLI(t, "--config", cfg, "request", "post", "/api/now/table/incident",
		"--query", "sysparm_limit=5", "--data", `{"short_description":"disk full"}`)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "5" || gotUser != "admin" {
		t.Errorf("query=%q user=%q", gotQuery, gotUser)
	}
	if !strings.HasPrefix(gotAgent, "snowctl/") {
		t.Errorf("User-Agent = %q", gotAgent)
	}
	if gotBody != `{"short_description":"disk full"}` {
		t.Errorf("body = %q", gotBody)
	}
	if !strings.Contains(out, "\n  \"result\": [") {
		t.Errorf("expected indented JSON, got %q", out)
	}
}

func TestRequestCommand_ServerErrorRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	cfg := writeConfig(t, fmt.Sprintf(baseConfig, srv.URL))

	_, err := runCLI(t, "--config", cfg, "request", "GET", "/api/now/table/incident")
	if !apperrors.IsServerError(err) || apperrors.AttemptsOf(err) != 3 {
		t.Errorf("expected SERVER_ERROR after 3 attempts, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d", hits.Load())
	}
}

func TestRequestCommand_ClientErrorPrintsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"No Record found"}}`)
	}))
	defer srv.Close()
	cfg := writeConfig(t, fmt.Sprintf(baseConfig, srv.URL))

	out, err := runCLI(t, "--config", cfg, "request", "GET", "/api/now/table/incident/missing", "--raw")
	if !apperrors.IsClientError(err) {
		t.Errorf("expected CLIENT_ERROR, got %v", err)
	}
	if out != "{\"error\":{\"message\":\"No Record found\"}}\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRequestCommand_EnvAliases(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
	}))
	defer srv.Close()
	cfg := writeConfig(t, "name: snowctl\nlogging:\n  level: disabled\n")

	root := newRootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--config", cfg, "request", "GET", "/api/now/table/sys_user"})
	t.Setenv("SERVICENOW_INSTANCE", srv.URL)
	t.Setenv("SERVICENOW_USERNAME", "integration")
	t.Setenv("SERVICENOW_PASSWORD", "s3cret")
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if gotUser != "integration" || gotPass != "s3cret" {
		t.Errorf("credentials = %q/%q", gotUser, gotPass)
	}
}

func TestRequestCommand_InvalidInput(t *testing.T) {
	cfg := writeConfig(t, fmt.Sprintf(baseConfig, "https://example.invalid"))
	tests := []struct {
		name string
		args []string
	}{
		{"bad query", []string{"request", "GET", "/x", "--query", "novalue"}},
		{"bad header", []string{"request", "GET", "/x", "--header", "=v"}},
		{"bad data", []string{"request", "POST", "/x", "--data", "{"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, append([]string{"--config", cfg}, tc.args...)...)
			if !apperrors.IsInvalidInput(err) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestRequestCommand_MissingInstance(t *testing.T) {
	cfg := writeConfig(t, "name: snowctl\nlogging:\n  level: disabled\nauth:\n  type: none\n")
	_, err := runCLI(t, "--config", cfg, "request", "GET", "/x")
	if err == nil || !strings.Contains(err.Error(), "http.base_url") {
		t.Errorf("expected base_url validation error, got %v", err)
	}
}

func TestRequestCommand_SharedRedisWindow(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()
	mini := miniredis.RunT(t)

	cfg := writeConfig(t, fmt.Sprintf(`
name: snowctl
logging:
  level: disabled
http:
  base_url: %s
  rate_limit:
    max_requests: 1
    window: 1m
    max_wait: -1s
auth:
  type: none
redis:
  enabled: true
  addr: %s
`, srv.URL, mini.Addr()))

	// Each invocation is a separate client; only Redis carries the window.
	if _, err := runCLI(t, "--config", cfg, "request", "GET", "/api/now/table/incident"); err != nil {
		t.Fatalf("first invocation: %v", err)
	}
	if _, err := runCLI(t, "--config", cfg, "request", "GET", "/api/now/table/incident"); !apperrors.IsRateLimitTimeout(err) {
		t.Errorf("second invocation should hit the shared window, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d", hits.Load())
	}
	if !mini.Exists("snow:ratelimit:servicenow") {
		t.Errorf("window key missing, keys: %v", mini.Keys())
	}
}

func TestStreamCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events":
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: update\ndata: INC1\n\ndata: INC2\n\n")
		default:
			for i := 0; i < 3; i++ {
				fmt.Fprintf(w, "{\"n\":%d}\r\n", i)
				w.(http.Flusher).Flush()
			}
		}
	}))
	defer srv.Close()
	cfg := writeConfig(t, fmt.Sprintf(baseConfig, srv.URL))

	out, err := runCLI(t, "--config", cfg, "stream", "/export")
	if err != nil {
		t.Fatal(err)
	}
	if out != "{\"n\":0}\r\n{\"n\":1}\r\n{\"n\":2}\r\n" {
		t.Errorf("raw stream = %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "stream", "/export", "--lines")
	if err != nil {
		t.Fatal(err)
	}
	if out != "{\"n\":0}\n{\"n\":1}\n{\"n\":2}\n" {
		t.Errorf("lines = %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "stream", "/events", "--sse")
	if err != nil {
		t.Fatal(err)
	}
	if out != "update\tINC1\nmessage\tINC2\n" {
		t.Errorf("events = %q", out)
	}

	if _, err := runCLI(t, "--config", cfg, "stream", "/events", "--sse", "--lines"); err == nil {
		t.Error("expected an error for --sse with --lines")
	}
}

func TestAppConfigDefaults(t *testing.T) {
	cfg := AppConfig{}
	cfg.HTTP.BaseURL = "dev123.service-now.com/"
	cfg.Auth.Type = "apikey"
	cfg.Auth.APIKey = &auth.APIKeyConfig{Key: "k"}
	cfg.ApplyDefaults()

	if cfg.Name != appName || cfg.Logging.Level != "warn" {
		t.Errorf("service defaults = %+v", cfg.ServiceConfig)
	}
	if cfg.HTTP.BaseURL != "https://dev123.service-now.com" {
		t.Errorf("BaseURL = %q", cfg.HTTP.BaseURL)
	}
	if cfg.Auth.Type != auth.TypeAPIKey || cfg.Auth.APIKey.HeaderName != auth.DefaultAPIKeyHeader {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Observability.ServiceName != appName {
		t.Errorf("observability service name = %q", cfg.Observability.ServiceName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestAppConfigOAuthUsesInstanceCredentials(t *testing.T) {
	cfg := AppConfig{}
	cfg.HTTP.BaseURL = "https://dev123.service-now.com"
	cfg.Auth.Type = auth.TypeOAuth
	cfg.Auth.Basic = &auth.BasicConfig{Username: "admin", Password: "pw"}
	cfg.Auth.OAuth = &auth.OAuthConfig{ClientID: "id", ClientSecret: "secret"}
	cfg.ApplyDefaults()

	o := cfg.Auth.OAuth
	if o.Username != "admin" || o.Password != "pw" {
		t.Errorf("oauth credentials = %q/%q", o.Username, o.Password)
	}
	if o.TokenURL != "https://dev123.service-now.com/oauth_token.do" {
		t.Errorf("TokenURL = %q", o.TokenURL)
	}
}

func TestWriteBody(t *testing.T) {
	var buf bytes.Buffer
	if err := writeBody(&buf, []byte("plain text"), false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain text\n" {
		t.Errorf("non-JSON body = %q", buf.String())
	}

	buf.Reset()
	_ = writeBody(&buf, []byte(`{"a":1}`), false)
	var v map[string]int
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil || v["a"] != 1 || !strings.Contains(buf.String(), "\n") {
		t.Errorf("indented body = %q", buf.String())
	}
}
