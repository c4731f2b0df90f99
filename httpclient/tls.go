package httpclient

import "github.com/IshaanChat/ubiquitous-octo-pancake/security"

// TLSConfig is the shared security TLS configuration used by the transport.
type TLSConfig = security.TLSConfig
