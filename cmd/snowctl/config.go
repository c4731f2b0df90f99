package main

import (
	"strings"

	"github.com/IshaanChat/ubiquitous-octo-pancake/auth"
	"github.com/IshaanChat/ubiquitous-octo-pancake/config"
	"github.com/IshaanChat/ubiquitous-octo-pancake/httpclient"
	"github.com/IshaanChat/ubiquitous-octo-pancake/observability"
	"github.com/IshaanChat/ubiquitous-octo-pancake/redis"
	"github.com/IshaanChat/ubiquitous-octo-pancake/validation"
	"github.com/IshaanChat/ubiquitous-octo-pancake/version"
)

const appName = "snowctl"

// AppConfig is the snowctl configuration file layout.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	HTTP          httpclient.Config    `yaml:"http" mapstructure:"http"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// envAliases binds the conventional ServiceNow variables.
var envAliases = map[string]string{
	"SERVICENOW_INSTANCE": "http.base_url",
	"SERVICENOW_USERNAME": "auth.basic.username",
	"SERVICENOW_PASSWORD": "auth.basic.password",
	"AUTH_TYPE":           "auth.type",
	"OAUTH_CLIENT_ID":     "auth.oauth.client_id",
	"OAUTH_CLIENT_SECRET": "auth.oauth.client_secret",
	"OAUTH_TOKEN_URL":     "auth.oauth.token_url",
	"API_KEY":             "auth.api_key.key",
	"API_KEY_HEADER":      "auth.api_key.header_name",
	"REDIS_ADDR":          "redis.addr",
}

func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = appName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Version == "" {
		c.Version = version.Short()
	}

	c.HTTP.BaseURL = instanceURL(c.HTTP.BaseURL)
	if c.HTTP.Name == "" {
		c.HTTP.Name = "servicenow"
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = version.UserAgent(c.Name)
	}
	c.HTTP.ApplyDefaults()

	switch strings.ToLower(strings.TrimSpace(c.Auth.Type)) {
	case "apikey", "api-key":
		c.Auth.Type = auth.TypeAPIKey
	}
	if c.Auth.InstanceURL == "" {
		c.Auth.InstanceURL = c.HTTP.BaseURL
	}
	// SERVICENOW_USERNAME/PASSWORD are the resource owner credentials for oauth.
	if c.Auth.OAuth != nil && c.Auth.Basic != nil {
		if c.Auth.OAuth.Username == "" {
			c.Auth.OAuth.Username = c.Auth.Basic.Username
		}
		if c.Auth.OAuth.Password == "" {
			c.Auth.OAuth.Password = c.Auth.Basic.Password
		}
	}
	c.Auth.ApplyDefaults()

	c.Redis.ApplyDefaults()

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	v := validation.New().
		Required("http.base_url", c.HTTP.BaseURL).
		Merge("http", c.HTTP.Validate()).
		Merge("auth", c.Auth.Validate()).
		Merge("observability", c.Observability.Validate())
	if c.Redis.Enabled {
		v.Merge("redis", c.Redis.Validate())
	}
	return v.Err()
}

// instanceURL accepts a bare instance host such as dev123.service-now.com.
func instanceURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "https://" + s
}
