// Package config loads application configuration with Viper.
//
// LoadConfig reads a YAML file, then the environment (optionally seeded from
// a .env file), then explicit aliases, and unmarshals the result into the
// caller's struct. Environment variables map onto nested keys by splitting
// on underscores, so HTTP_BASE_URL sets http.base_url:
//
//	var cfg AppConfig
//	err := config.LoadConfig("snowctl", &cfg,
//	    config.WithEnvAliases(map[string]string{"SERVICENOW_INSTANCE": "http.base_url"}))
//
// ServiceConfig carries the name, environment and logging fields that
// application configs embed.
package config
