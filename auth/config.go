package auth

import (
	"fmt"
	"strings"

	"github.com/IshaanChat/ubiquitous-octo-pancake/validation"
)

// Supported credential types.
const (
	TypeNone   = "none"
	TypeBasic  = "basic"
	TypeOAuth  = "oauth"
	TypeAPIKey = "api_key"
	TypeBearer = "bearer"
)

// Config selects and configures a credential provider.
// Sub-configs are pointers so unused types stay nil.
type Config struct {
	// Type is one of none, basic, oauth, api_key, bearer. Defaults to basic.
	Type string `yaml:"type" mapstructure:"type"`
	// InstanceURL seeds the OAuth token URL when oauth.token_url is empty.
	InstanceURL string `yaml:"instance_url" mapstructure:"instance_url"`

	Basic  *BasicConfig  `yaml:"basic" mapstructure:"basic"`
	OAuth  *OAuthConfig  `yaml:"oauth" mapstructure:"oauth"`
	APIKey *APIKeyConfig `yaml:"api_key" mapstructure:"api_key"`
	Bearer *BearerConfig `yaml:"bearer" mapstructure:"bearer"`
}

// BasicConfig holds HTTP Basic credentials.
type BasicConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// APIKeyConfig holds an API key and the header that carries it.
type APIKeyConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HeaderName string `yaml:"header_name" mapstructure:"header_name"`
}

// BearerConfig holds a pre-issued bearer token.
type BearerConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
}

// ApplyDefaults sets defaults for the selected type.
func (c *Config) ApplyDefaults() {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Type == "" {
		c.Type = TypeBasic
	}
	if c.OAuth != nil {
		if c.OAuth.InstanceURL == "" {
			c.OAuth.InstanceURL = c.InstanceURL
		}
		c.OAuth.ApplyDefaults()
	}
	if c.APIKey != nil && c.APIKey.HeaderName == "" {
		c.APIKey.HeaderName = DefaultAPIKeyHeader
	}
}

// Validate checks that the selected type has its credentials.
func (c *Config) Validate() error {
	v := validation.New().OneOf("type", c.Type, []string{TypeNone, TypeBasic, TypeOAuth, TypeAPIKey, TypeBearer})

	switch c.Type {
	case TypeBasic:
		if c.Basic == nil {
			v.AddError("basic", "is required for type basic")
		} else {
			v.Required("basic.username", c.Basic.Username).Required("basic.password", c.Basic.Password)
		}
	case TypeOAuth:
		if c.OAuth == nil {
			v.AddError("oauth", "is required for type oauth")
		} else {
			v.Merge("oauth", c.OAuth.Validate())
		}
	case TypeAPIKey:
		if c.APIKey == nil {
			v.AddError("api_key", "is required for type api_key")
		} else {
			v.Required("api_key.key", c.APIKey.Key)
		}
	case TypeBearer:
		if c.Bearer == nil {
			v.AddError("bearer", "is required for type bearer")
		} else {
			v.Required("bearer.token", c.Bearer.Token)
		}
	}
	return v.Err()
}

// Describe returns a one-line summary without secrets.
func (c *Config) Describe() string {
	switch c.Type {
	case TypeBasic:
		if c.Basic != nil {
			return fmt.Sprintf("basic(%s)", c.Basic.Username)
		}
	case TypeOAuth:
		if c.OAuth != nil {
			return fmt.Sprintf("oauth(%s as %s)", c.OAuth.ClientID, c.OAuth.Username)
		}
	case TypeAPIKey:
		if c.APIKey != nil {
			return fmt.Sprintf("api_key(%s)", c.APIKey.HeaderName)
		}
	}
	return c.Type
}

// NewProvider builds the provider selected by cfg.
func NewProvider(cfg Config, opts ...OAuthOption) (Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	switch cfg.Type {
	case TypeBasic:
		return Basic(cfg.Basic.Username, cfg.Basic.Password), nil
	case TypeOAuth:
		return NewOAuthProvider(*cfg.OAuth, opts...)
	case TypeAPIKey:
		return APIKey(cfg.APIKey.Key, cfg.APIKey.HeaderName), nil
	case TypeBearer:
		return Bearer(cfg.Bearer.Token), nil
	default:
		return None(), nil
	}
}
