// Package auth supplies credentials for outbound requests.
//
// A Provider returns the headers to attach to a request and knows how to
// obtain fresh credentials when the remote service rejects the current ones:
//
//   - Bearer, Basic, APIKey: static credentials; Refresh is unsupported
//   - OAuthProvider: password grant with refresh_token renewal
//
// Coordinator wraps a Provider so that concurrent rejections collapse into a
// single refresh. Callers remember the credential generation their headers
// came from; a refresh requested for a generation that has already been
// replaced returns immediately.
//
// Providers are usually built from configuration:
//
//	auth:
//	  type: oauth
//	  instance_url: https://dev1.service-now.com
//	  oauth:
//	    client_id: my-client
//	    client_secret: s3cret
//	    username: integration
//	    password: hunter2
//
//	p, err := auth.NewProvider(cfg.Auth)
package auth
