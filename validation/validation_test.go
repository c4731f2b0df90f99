package validation

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/IshaanChat/ubiquitous-octo-pancake/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "")
	if !v.HasErrors() {
		t.Fatal("expected error for empty string")
	}

	v = New()
	v.Required("name", "   ")
	if !v.HasErrors() {
		t.Fatal("expected error for whitespace-only string")
	}

	v = New()
	v.Required("name", "snow")
	if v.HasErrors() {
		t.Fatal("expected no error for non-empty string")
	}
}

func TestValidatorHTTPURL(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"", true},
		{"https://dev1.service-now.com", true},
		{"http://localhost:8080/api", true},
		{"dev1.service-now.com", false},
		{"ftp://example.com", false},
		{"https://", false},
	}
	for _, tt := range tests {
		v := New().HTTPURL("instance_url", tt.value)
		if v.HasErrors() == tt.ok {
			t.Errorf("HTTPURL(%q): errors=%v, want ok=%v", tt.value, v.Errors(), tt.ok)
		}
	}
}

func TestValidatorMinPositiveOneOf(t *testing.T) {
	v := New().
		Min("max_attempts", 0, 1).
		Positive("timeout", 0).
		OneOf("type", "kerberos", []string{"basic", "oauth"})
	if got := len(v.Errors()); got != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", got, v.Errors())
	}

	v = New().
		Min("max_attempts", 3, 1).
		Positive("timeout", time.Second).
		OneOf("type", "", []string{"basic"})
	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}
}

func TestValidatorValidate(t *testing.T) {
	v := New()
	if v.Validate() != nil || v.Err() != nil {
		t.Fatal("expected nil when no errors")
	}

	v.Required("username", "").Custom(false, "password", "is required")
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "username: is required") ||
		!strings.Contains(appErr.Message, "password: is required") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	if fields, ok := appErr.Details["fields"].([]FieldError); !ok || len(fields) != 2 {
		t.Errorf("expected 2 field errors in details, got %v", appErr.Details)
	}
}

func TestValidatorMerge(t *testing.T) {
	inner := New().Required("token_url", "").Err()
	v := New().Merge("oauth", inner).Merge("pool", stderrors.New("broken")).Merge("none", nil)

	errs := v.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if errs[0].Field != "oauth.token_url" {
		t.Errorf("expected scoped field, got %q", errs[0].Field)
	}
	if errs[1].Field != "pool" || errs[1].Message != "broken" {
		t.Errorf("unexpected plain error entry %+v", errs[1])
	}
}

type poolConfig struct {
	MaxConns int    `mapstructure:"max_conns" validate:"gte=1"`
	Mode     string `mapstructure:"mode" validate:"omitempty,oneof=fast slow"`
	Nested   struct {
		URL string `mapstructure:"url" validate:"required,url"`
	} `mapstructure:"nested"`
}

func TestStructValidateValid(t *testing.T) {
	var c poolConfig
	c.MaxConns = 10
	c.Nested.URL = "https://example.com"
	if err := Validate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	var c poolConfig
	c.Mode = "medium"
	err := Validate(c)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.IsInvalidInput(err) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"max_conns: must be at least 1", "mode: must be one of: fast slow", "nested.url: is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
