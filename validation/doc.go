// Package validation checks configuration and request values.
//
// Struct tags are evaluated with go-playground/validator; field names in
// messages come from the mapstructure tag so they match the config keys a
// user actually wrote:
//
//	type PoolConfig struct {
//	    MaxConns int `mapstructure:"max_conns" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// Checks that tags cannot express are collected programmatically:
//
//	v := validation.New()
//	v.Required("instance_url", cfg.InstanceURL).HTTPURL("instance_url", cfg.InstanceURL)
//	err := v.Err()
//
// Both paths return an *errors.AppError with code INVALID_INPUT.
package validation
