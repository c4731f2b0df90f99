package auth

import (
	"context"
	"encoding/base64"
	"errors"
)

// DefaultAPIKeyHeader is the header APIKey uses when none is configured.
const DefaultAPIKeyHeader = "X-ServiceNow-API-Key"

var (
	// ErrRefreshUnsupported is returned by providers whose credentials cannot be renewed.
	ErrRefreshUnsupported = errors.New("auth: credentials cannot be refreshed")
	// ErrNoCredentials is returned when a provider has nothing to send.
	ErrNoCredentials = errors.New("auth: no credentials available")
)

// Provider supplies request credentials.
type Provider interface {
	// CurrentHeaders returns the headers carrying the current credentials,
	// obtaining them first if necessary.
	CurrentHeaders(ctx context.Context) (map[string]string, error)
	// Refresh replaces the current credentials.
	Refresh(ctx context.Context) error
}

// staticProvider serves a fixed header set.
type staticProvider struct {
	headers map[string]string
}

func (p *staticProvider) CurrentHeaders(context.Context) (map[string]string, error) {
	if len(p.headers) == 0 {
		return nil, ErrNoCredentials
	}
	out := make(map[string]string, len(p.headers))
	for k, v := range p.headers {
		out[k] = v
	}
	return out, nil
}

func (p *staticProvider) Refresh(context.Context) error {
	return ErrRefreshUnsupported
}

// Bearer returns a provider sending "Authorization: Bearer <token>".
func Bearer(token string) Provider {
	if token == "" {
		return &staticProvider{}
	}
	return &staticProvider{headers: map[string]string{"Authorization": "Bearer " + token}}
}

// Basic returns a provider sending HTTP Basic credentials.
func Basic(username, password string) Provider {
	if username == "" {
		return &staticProvider{}
	}
	return &staticProvider{headers: map[string]string{"Authorization": basicAuth(username, password)}}
}

// APIKey returns a provider sending key in header (DefaultAPIKeyHeader when empty).
func APIKey(key, header string) Provider {
	if key == "" {
		return &staticProvider{}
	}
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &staticProvider{headers: map[string]string{header: key}}
}

// None returns a provider that attaches nothing.
func None() Provider {
	return noneProvider{}
}

type noneProvider struct{}

func (noneProvider) CurrentHeaders(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func (noneProvider) Refresh(context.Context) error {
	return ErrRefreshUnsupported
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
