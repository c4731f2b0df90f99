package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names recorded by ClientMetrics.
const (
	MetricRequests      = "http.client.requests"
	MetricAttempts      = "http.client.attempts"
	MetricRetries       = "http.client.retries"
	MetricRefreshes     = "http.client.auth.refreshes"
	MetricAdmissionWait = "http.client.admission.wait"
	MetricDuration      = "http.client.request.duration"
	MetricActiveStreams = "http.client.streams.active"
	MetricPoolRejects   = "http.client.pool.rejections"
)

// ClientMetrics holds the instruments of the outbound HTTP client.
// A nil *ClientMetrics records nothing.
type ClientMetrics struct {
	requests      metric.Int64Counter
	attempts      metric.Int64Counter
	retries       metric.Int64Counter
	refreshes     metric.Int64Counter
	admissionWait metric.Float64Histogram
	duration      metric.Float64Histogram
	activeStreams metric.Int64UpDownCounter
	poolRejects   metric.Int64Counter
}

// NewClientMetrics creates the client instruments on meter.
func NewClientMetrics(meter metric.Meter) (*ClientMetrics, error) {
	var (
		m   ClientMetrics
		err error
	)

	if m.requests, err = meter.Int64Counter(MetricRequests,
		metric.WithDescription("Logical requests by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequests, err)
	}
	if m.attempts, err = meter.Int64Counter(MetricAttempts,
		metric.WithDescription("Network attempts by response status"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricAttempts, err)
	}
	if m.retries, err = meter.Int64Counter(MetricRetries,
		metric.WithDescription("Retries by reason"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRetries, err)
	}
	if m.refreshes, err = meter.Int64Counter(MetricRefreshes,
		metric.WithDescription("Credential refreshes performed"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRefreshes, err)
	}
	if m.admissionWait, err = meter.Float64Histogram(MetricAdmissionWait,
		metric.WithDescription("Time spent waiting for rate limit admission"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricAdmissionWait, err)
	}
	if m.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of logical requests including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricDuration, err)
	}
	if m.activeStreams, err = meter.Int64UpDownCounter(MetricActiveStreams,
		metric.WithDescription("Open response streams"),
	); err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricActiveStreams, err)
	}
	if m.poolRejects, err = meter.Int64Counter(MetricPoolRejects,
		metric.WithDescription("Attempts turned away by a saturated connection pool"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricPoolRejects, err)
	}

	return &m, nil
}

// RecordAttempt counts one network attempt. status is 0 when no response arrived.
func (m *ClientMetrics) RecordAttempt(ctx context.Context, method string, status int) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", statusLabel(status)),
	))
}

// RecordRetry counts a scheduled retry.
func (m *ClientMetrics) RecordRetry(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRefresh counts a credential refresh and its outcome.
func (m *ClientMetrics) RecordRefresh(ctx context.Context, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAdmissionWait records time spent in the rate limiter.
func (m *ClientMetrics) RecordAdmissionWait(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.admissionWait.Record(ctx, d.Seconds())
}

// RecordRequest records a finished logical request. outcome is "ok" or an error code.
func (m *ClientMetrics) RecordRequest(ctx context.Context, method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// StreamOpened increments the open stream gauge.
func (m *ClientMetrics) StreamOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeStreams.Add(ctx, 1)
}

// StreamClosed decrements the open stream gauge.
func (m *ClientMetrics) StreamClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeStreams.Add(ctx, -1)
}

// RecordPoolReject counts an attempt that found no free connection slot.
// reason is "full" or "timeout".
func (m *ClientMetrics) RecordPoolReject(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.poolRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}
