// Package observability wires OpenTelemetry tracing and metrics.
//
// Init installs OTLP/HTTP exporters as the global providers:
//
//	shutdown, err := observability.Init(ctx, observability.Config{
//	    Enabled:     true,
//	    ServiceName: "snowctl",
//	    Endpoint:    "localhost:4318",
//	})
//	defer shutdown(ctx)
//
// The HTTP client records its attempts, retries, refreshes and admission
// waits through ClientMetrics and wraps each logical request in a span:
//
//	metrics, err := observability.NewClientMetrics(observability.Meter("httpclient"))
//	ctx, span := observability.StartSpan(ctx, observability.SpanHTTPRequest)
//	defer span.End()
package observability
