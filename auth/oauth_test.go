package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenServer struct {
	*httptest.Server
	passwordGrants atomic.Int32
	refreshGrants  atomic.Int32
	failRefresh    atomic.Bool
	failAll        atomic.Bool
	delay          time.Duration
	expiresIn      int64
	accessToken    func(n int32) string
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{expiresIn: 1800}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/oauth_token.do" {
			http.NotFound(w, r)
			return
		}
		if id, secret, ok := r.BasicAuth(); !ok || id != "client" || secret != "shh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}
		if ts.failAll.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var n int32
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			n = ts.passwordGrants.Add(1)
		case "refresh_token":
			if ts.failRefresh.Load() || r.PostForm.Get("refresh_token") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			n = 100 + ts.refreshGrants.Add(1)
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		access := "access-" + string(rune('a'+n%26))
		if ts.accessToken != nil {
			access = ts.accessToken(n)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    ts.expiresIn,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestOAuth(t *testing.T, ts *tokenServer) *OAuthProvider {
	t.Helper()
	p, err := NewOAuthProvider(OAuthConfig{
		InstanceURL:  ts.URL,
		ClientID:     "client",
		ClientSecret: "shh",
		Username:     "admin",
		Password:     "pw",
	})
	if err != nil {
		t.Fatalf("NewOAuthProvider: %v", err)
	}
	return p
}

func TestOAuthConfig_Defaults(t *testing.T) {
	cfg := OAuthConfig{InstanceURL: "https://dev1.service-now.com/"}
	cfg.ApplyDefaults()
	if cfg.TokenURL != "https://dev1.service-now.com/oauth_token.do" {
		t.Errorf("unexpected token url %q", cfg.TokenURL)
	}
	if cfg.ExpirySkew != 5*time.Minute {
		t.Errorf("unexpected skew %v", cfg.ExpirySkew)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing credentials to fail validation")
	}
}

func TestOAuth_PasswordGrantAndCache(t *testing.T) {
	ts := newTokenServer(t)
	p := newTestOAuth(t, ts)

	h, err := p.CurrentHeaders(context.Background())
	if err != nil {
		t.Fatalf("CurrentHeaders: %v", err)
	}
	first := h["Authorization"]
	if first == "" || first[:7] != "Bearer " {
		t.Fatalf("unexpected header %q", first)
	}

	h, _ = p.CurrentHeaders(context.Background())
	if h["Authorization"] != first {
		t.Errorf("token changed without expiry: %q", h["Authorization"])
	}
	if got := ts.passwordGrants.Load(); got != 1 {
		t.Errorf("expected 1 password grant, got %d", got)
	}
}

func TestOAuth_RenewsInsideSkew(t *testing.T) {
	ts := newTokenServer(t)
	p := newTestOAuth(t, ts)

	if _, err := p.CurrentHeaders(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 1800s lifetime, 5m skew: at +26m the token is due for renewal.
	p.now = func() time.Time { return time.Now().Add(26 * time.Minute) }
	if _, err := p.CurrentHeaders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ts.refreshGrants.Load(); got != 1 {
		t.Errorf("expected 1 refresh grant, got %d", got)
	}
	if got := ts.passwordGrants.Load(); got != 1 {
		t.Errorf("expected no extra password grant, got %d", got)
	}
}

func TestOAuth_RefreshFallsBackToPasswordGrant(t *testing.T) {
	ts := newTokenServer(t)
	p := newTestOAuth(t, ts)
	if _, err := p.CurrentHeaders(context.Background()); err != nil {
		t.Fatal(err)
	}

	ts.failRefresh.Store(true)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := ts.passwordGrants.Load(); got != 2 {
		t.Errorf("expected fallback password grant, got %d grants", got)
	}
}

func TestOAuth_RefreshFailure(t *testing.T) {
	ts := newTokenServer(t)
	p := newTestOAuth(t, ts)
	ts.failAll.Store(true)

	err := p.Refresh(context.Background())
	if !errors.Is(err, ErrTokenRequest) {
		t.Fatalf("expected ErrTokenRequest, got %v", err)
	}
	if p.Token() != nil {
		t.Error("failed grant must not leave a token behind")
	}
}

func TestOAuth_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	ts := newTokenServer(t)
	ts.expiresIn = 0
	ts.accessToken = func(int32) string {
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
		return s
	}
	p := newTestOAuth(t, ts)

	if _, err := p.CurrentHeaders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := p.Token().ExpiresAt; !got.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", got, exp)
	}
}

func TestOAuth_OpaqueTokenWithoutExpiry(t *testing.T) {
	ts := newTokenServer(t)
	ts.expiresIn = 0
	p := newTestOAuth(t, ts)

	if _, err := p.CurrentHeaders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !p.Token().ExpiresAt.IsZero() {
		t.Error("expected unknown expiry")
	}
	p.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if _, err := p.CurrentHeaders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ts.passwordGrants.Load() != 1 || ts.refreshGrants.Load() != 0 {
		t.Error("token with unknown expiry should be reused until rejected")
	}
}

func TestOAuth_ConcurrentFirstUseSingleGrant(t *testing.T) {
	ts := newTokenServer(t)
	ts.delay = 30 * time.Millisecond
	p := newTestOAuth(t, ts)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.CurrentHeaders(context.Background()); err != nil {
				t.Errorf("CurrentHeaders: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := ts.passwordGrants.Load(); got != 1 {
		t.Errorf("expected 1 password grant, got %d", got)
	}
}

func TestOAuth_CallerCancelDoesNotAbortGrant(t *testing.T) {
	ts := newTokenServer(t)
	ts.delay = 50 * time.Millisecond
	p := newTestOAuth(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.CurrentHeaders(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Token() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Token() == nil {
		t.Fatal("grant should complete after the caller gave up")
	}
}
