package security

import (
	"crypto/tls"
	"testing"

	"github.com/IshaanChat/ubiquitous-octo-pancake/errors"
	"github.com/IshaanChat/ubiquitous-octo-pancake/security/tlstest"
)

func TestBuild_Unconfigured(t *testing.T) {
	var nilCfg *TLSConfig
	for _, cfg := range []*TLSConfig{nilCfg, {}} {
		got, err := cfg.Build()
		if err != nil || got != nil {
			t.Errorf("Build() = %v, %v; want nil, nil", got, err)
		}
		if cfg.IsEnabled() {
			t.Error("IsEnabled() = true for empty config")
		}
	}
}

func TestBuild_SkipVerifyAndServerName(t *testing.T) {
	cfg := &TLSConfig{SkipVerify: true, ServerName: "dev1.service-now.com"}
	got, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	if !got.InsecureSkipVerify || got.ServerName != "dev1.service-now.com" {
		t.Errorf("unexpected config %+v", got)
	}
	if got.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", got.MinVersion)
	}
}

func TestBuild_MinVersion(t *testing.T) {
	got, err := (&TLSConfig{MinVersion: TLS13}).Build()
	if err != nil {
		t.Fatal(err)
	}
	if got.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %x, want TLS 1.3", got.MinVersion)
	}

	_, err = (&TLSConfig{MinVersion: "1.0"}).Build()
	if !errors.IsInvalidInput(err) {
		t.Errorf("expected INVALID_INPUT for 1.0, got %v", err)
	}
}

func TestBuild_CAAndClientCert(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	got, err := (&TLSConfig{CAFile: certs.CAFile, CertFile: certs.CertFile, KeyFile: certs.KeyFile}).Build()
	if err != nil {
		t.Fatal(err)
	}
	if got.RootCAs == nil {
		t.Error("RootCAs not set")
	}
	if len(got.Certificates) != 1 {
		t.Errorf("certificates = %d", len(got.Certificates))
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing CA file", TLSConfig{CAFile: "/nonexistent/ca.pem"}},
		{"invalid CA content", TLSConfig{CAFile: tlstest.WriteInvalidPEM(t, "bad.pem")}},
		{"missing cert files", TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}},
		{"cert without key", TLSConfig{CertFile: "cert.pem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := (&TLSConfig{CertFile: "c", KeyFile: "k", MinVersion: TLS12}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (*TLSConfig)(nil).Validate(); err != nil {
		t.Errorf("nil config: %v", err)
	}
	err := (&TLSConfig{KeyFile: "k"}).Validate()
	if !errors.IsInvalidInput(err) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}
