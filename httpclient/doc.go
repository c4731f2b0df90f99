// Package httpclient is a resilient client for a remote REST service.
//
// Every network attempt passes through a rate limiter, carries credentials
// from an auth.Provider and holds a connection-pool slot. Failed attempts
// are classified into the errors package taxonomy: network failures and 5xx
// responses are retried with exponential backoff, 429 responses wait for
// the server's Retry-After, and 401/403 responses trigger exactly one
// shared credential refresh before a final retry.
//
// # Basic Usage
//
//	provider, _ := auth.NewProvider(cfg.Auth)
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://dev1.service-now.com",
//	}, httpclient.WithAuth(provider))
//
//	resp, err := client.Execute(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "/api/now/table/incident",
//	    Query:  map[string]string{"sysparm_limit": "10"},
//	})
//
// # Streaming
//
//	stream, err := client.OpenStream(ctx, httpclient.Request{Path: "/api/now/export"})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for line, err := range stream.Lines() {
//	    ...
//	}
//
// Typed helpers decode JSON bodies:
//
//	resp, err := httpclient.Get[IncidentList](client, ctx, "/api/now/table/incident")
package httpclient
