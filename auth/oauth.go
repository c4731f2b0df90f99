package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
	"github.com/IshaanChat/ubiquitous-octo-pancake/validation"
)

// ErrTokenRequest is returned when the token endpoint refuses a grant.
var ErrTokenRequest = errors.New("auth: token request failed")

// OAuthConfig configures the OAuth password grant.
type OAuthConfig struct {
	// InstanceURL is the service root; the token URL defaults to <instance>/oauth_token.do.
	InstanceURL  string        `yaml:"instance_url" mapstructure:"instance_url"`
	TokenURL     string        `yaml:"token_url" mapstructure:"token_url"`
	ClientID     string        `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string        `yaml:"client_secret" mapstructure:"client_secret"`
	Username     string        `yaml:"username" mapstructure:"username"`
	Password     string        `yaml:"password" mapstructure:"password"`
	Scope        string        `yaml:"scope" mapstructure:"scope"`
	// ExpirySkew renews tokens this long before they expire.
	ExpirySkew time.Duration `yaml:"expiry_skew" mapstructure:"expiry_skew"`
	// Timeout bounds each token request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields.
func (c *OAuthConfig) ApplyDefaults() {
	if c.TokenURL == "" && c.InstanceURL != "" {
		c.TokenURL = strings.TrimRight(c.InstanceURL, "/") + "/oauth_token.do"
	}
	if c.ExpirySkew == 0 {
		c.ExpirySkew = 5 * time.Minute
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c *OAuthConfig) Validate() error {
	return validation.New().
		Required("token_url", c.TokenURL).
		HTTPURL("token_url", c.TokenURL).
		Required("client_id", c.ClientID).
		Required("client_secret", c.ClientSecret).
		Required("username", c.Username).
		Required("password", c.Password).
		Err()
}

// Token is an issued access token.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	// ExpiresAt is zero when the expiry is unknown.
	ExpiresAt time.Time
}

// validAt reports whether the token can still be used at now, allowing skew.
func (t *Token) validAt(now time.Time, skew time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt.Add(-skew))
}

// header renders the Authorization value.
func (t *Token) header() string {
	typ := t.TokenType
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return typ + " " + t.AccessToken
}

// tokenResponse is the token endpoint JSON body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// OAuthOption configures an OAuthProvider.
type OAuthOption func(*OAuthProvider)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) OAuthOption {
	return func(p *OAuthProvider) { p.http = c }
}

// WithLogger sets the provider logger.
func WithLogger(l *logger.Logger) OAuthOption {
	return func(p *OAuthProvider) { p.log = l.WithComponent("auth.oauth") }
}

// OAuthProvider obtains bearer tokens with the OAuth password grant and
// renews them with the refresh_token grant, falling back to a full
// password grant when renewal is refused.
type OAuthProvider struct {
	cfg  OAuthConfig
	http *http.Client
	log  *logger.Logger
	now  func() time.Time

	// fetch collapses concurrent token requests.
	fetch singleflight.Group

	mu    sync.RWMutex
	token *Token
}

var _ Provider = (*OAuthProvider)(nil)

// NewOAuthProvider creates a provider. No request is made until credentials are needed.
func NewOAuthProvider(cfg OAuthConfig, opts ...OAuthOption) (*OAuthProvider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth.oauth: %w", err)
	}
	p := &OAuthProvider{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CurrentHeaders returns the Authorization header, fetching or renewing the
// token when it is missing or inside the expiry skew.
func (p *OAuthProvider) CurrentHeaders(ctx context.Context) (map[string]string, error) {
	if tok := p.Token(); tok.validAt(p.now(), p.cfg.ExpirySkew) {
		return map[string]string{"Authorization": tok.header()}, nil
	}
	tok, err := p.obtain(ctx, false)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": tok.header()}, nil
}

// Refresh replaces the current token regardless of its expiry.
func (p *OAuthProvider) Refresh(ctx context.Context) error {
	_, err := p.obtain(ctx, true)
	return err
}

// Token returns the current token, or nil before the first grant.
func (p *OAuthProvider) Token() *Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// obtain runs one token exchange on behalf of all concurrent callers.
func (p *OAuthProvider) obtain(ctx context.Context, force bool) (*Token, error) {
	key := "token"
	if force {
		key = "refresh"
	}
	ch := p.fetch.DoChan(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		if !force {
			// Another caller may have finished a grant while we queued.
			if tok := p.Token(); tok.validAt(p.now(), p.cfg.ExpirySkew) {
				return tok, nil
			}
		}
		return p.renew(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	}
}

// renew tries the refresh_token grant first when a refresh token is held.
func (p *OAuthProvider) renew(ctx context.Context) (*Token, error) {
	if cur := p.Token(); cur != nil && cur.RefreshToken != "" {
		tok, err := p.grant(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {cur.RefreshToken},
		})
		if err == nil {
			p.store(tok)
			p.log.Debug("access token renewed")
			return tok, nil
		}
		p.log.Warn("token renewal failed, re-authenticating", logger.ErrorFields(err))
		p.store(nil)
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {p.cfg.Username},
		"password":   {p.cfg.Password},
	}
	if p.cfg.Scope != "" {
		form.Set("scope", p.cfg.Scope)
	}
	tok, err := p.grant(ctx, form)
	if err != nil {
		p.log.Error("authentication failed", logger.ErrorFields(err))
		return nil, err
	}
	p.store(tok)
	p.log.Info("authenticated", logger.Fields("expires_at", tok.ExpiresAt))
	return tok, nil
}

func (p *OAuthProvider) store(tok *Token) {
	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()
}

// grant posts form to the token endpoint with client credentials in Basic auth.
func (p *OAuthProvider) grant(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTokenRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s grant returned HTTP %d", ErrTokenRequest, form.Get("grant_type"), resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrTokenRequest, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access_token", ErrTokenRequest)
	}

	tok := &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
	}
	switch {
	case tr.ExpiresIn > 0:
		tok.ExpiresAt = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		tok.ExpiresAt = jwtExpiry(tr.AccessToken)
	}
	return tok, nil
}

// jwtExpiry reads the exp claim of a JWT access token without verifying it.
// Opaque tokens yield the zero time.
func jwtExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
