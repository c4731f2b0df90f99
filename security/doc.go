// Package security builds client TLS settings for outbound connections.
//
//	cfg := security.TLSConfig{
//	    CAFile:     "/etc/snow/ca.pem",
//	    MinVersion: security.TLS13,
//	}
//	tlsConfig, err := cfg.Build()
//
// Package tlstest generates throwaway certificates and TLS test servers.
package security
