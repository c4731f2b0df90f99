package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http2"

	"github.com/IshaanChat/ubiquitous-octo-pancake/auth"
	apperrors "github.com/IshaanChat/ubiquitous-octo-pancake/errors"
	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
	"github.com/IshaanChat/ubiquitous-octo-pancake/observability"
	"github.com/IshaanChat/ubiquitous-octo-pancake/resilience"
)

// ErrClosed is returned for requests issued after Close.
var ErrClosed = errors.New("httpclient: client closed")

// Option configures a Client.
type Option func(*options)

type options struct {
	provider  auth.Provider
	limiter   resilience.Admitter
	log       *logger.Logger
	metrics   *observability.ClientMetrics
	transport http.RoundTripper
}

// WithAuth sets the credential provider. Defaults to auth.None().
func WithAuth(p auth.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithLimiter replaces the in-process sliding window, e.g. with a
// Redis-backed window shared across processes.
func WithLimiter(l resilience.Admitter) Option {
	return func(o *options) { o.limiter = l }
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.ClientMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTransport replaces the pooled transport. Pool, TLS and HTTP2 settings
// no longer apply to the transport; the in-flight ceiling still does.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// Client executes requests against one remote service.
// It is safe for concurrent use.
type Client struct {
	config    Config
	http      *http.Client
	transport *http.Transport
	limiter   resilience.Admitter
	backoff   *resilience.Backoff
	pool      *resilience.Bulkhead
	auth      *auth.Coordinator
	log       *logger.Logger
	metrics   *observability.ClientMetrics
	closed    atomic.Bool
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{provider: auth.None()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("httpclient")
	}

	c := &Client{
		config:  cfg,
		backoff: resilience.NewBackoff(cfg.Retry),
		log:     o.log,
		metrics: o.metrics,
	}

	rt := o.transport
	if rt == nil {
		t, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		c.transport = t
		rt = t
	}
	c.http = &http.Client{Transport: rt}

	c.limiter = o.limiter
	if c.limiter == nil {
		wc := cfg.RateLimit
		if wc.OnLimit == nil {
			wc.OnLimit = func(name string, wait time.Duration) {
				c.log.Debug("rate limit reached, waiting", logger.Fields("limiter", name, logger.FieldDelay, wait.Milliseconds()))
			}
		}
		c.limiter = resilience.NewSlidingWindow(wc)
	}

	c.pool = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          cfg.Name,
		MaxConcurrent: cfg.Pool.MaxConns,
		MaxWait:       cfg.Pool.AcquireTimeout,
		OnReject:      c.poolRejected,
	})

	c.auth = auth.NewCoordinator(o.provider, func(ctx context.Context, err error, elapsed time.Duration) {
		c.metrics.RecordRefresh(ctx, err)
		l := c.log.WithContext(ctx)
		if err != nil {
			l.Warn("credential refresh failed", logger.Fields(logger.FieldError, err.Error(), logger.FieldDuration, elapsed.Milliseconds()))
			return
		}
		l.Info("credentials refreshed", logger.DurationFields(elapsed))
	})

	return c, nil
}

// newTransport builds the pooled transport.
func newTransport(cfg Config) (*http.Transport, error) {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxConnsPerHost:       cfg.Pool.MaxConnsPerHost,
		MaxIdleConns:          cfg.Pool.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.Pool.MaxIdleConns,
		IdleConnTimeout:       cfg.Pool.IdleTimeout,
	}

	if cfg.TLS != nil {
		tlsCfg, err := cfg.TLS.Build()
		if err != nil {
			return nil, err
		}
		if tlsCfg != nil {
			t.TLSClientConfig = tlsCfg
		}
	}

	if !cfg.HTTP2.Disabled {
		h2, err := http2.ConfigureTransports(t)
		if err != nil {
			return nil, fmt.Errorf("httpclient: configure http2: %w", err)
		}
		h2.ReadIdleTimeout = cfg.HTTP2.ReadIdleTimeout
		h2.PingTimeout = cfg.HTTP2.PingTimeout
	}
	return t, nil
}

// Execute sends req, retrying as configured, and returns the buffered response.
//
// Failures are *errors.AppError values; a 4xx response other than 401,
// 403 and 429 is returned together with its CLIENT_ERROR. Cancellation of
// ctx returns ctx.Err().
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	ctx, rid := ensureRequestID(ctx)
	method := normalizeMethod(req.Method)
	ctx, span := observability.StartSpan(ctx, observability.SpanHTTPRequest,
		attribute.String(observability.AttrHTTPMethod, method),
		attribute.String(observability.AttrURL, req.Path),
		attribute.String(observability.AttrRequestID, rid),
	)
	log := c.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldMethod, method, logger.FieldURL, req.Path))

	st := newRetryState()
	ex, err := c.exchange(ctx, req, body, false, st, log)
	st.done()

	status := 0
	if ex != nil {
		status = ex.resp.StatusCode
	}
	c.finish(ctx, span, log, method, st, status, err)

	if ex == nil {
		return nil, err
	}
	return &Response{
		StatusCode: ex.resp.StatusCode,
		Header:     ex.resp.Header,
		Body:       ex.body,
		Attempts:   st.Attempt,
		RequestID:  rid,
	}, err
}

// Close stops accepting requests and closes idle connections. Open streams
// remain readable until they are closed.
func (c *Client) Close(_ context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// InFlight returns the number of requests and streams holding a pool slot.
func (c *Client) InFlight() int {
	return c.pool.InUse()
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// exchange is the outcome of a successful attempt.
type exchange struct {
	resp *http.Response
	// body is the buffered body; nil for streams.
	body []byte
	// cancel and release are handed to the stream; nil once consumed.
	cancel  context.CancelFunc
	release func()
}

// exchange runs attempts until one succeeds or the failure is terminal.
// A CLIENT_ERROR is returned together with its buffered exchange.
func (c *Client) exchange(ctx context.Context, req Request, body *payload, stream bool, st *RetryState, log *logger.Logger) (*exchange, error) {
	for {
		if err := c.admit(ctx, st); err != nil {
			return nil, err
		}

		var (
			creds map[string]string
			gen   uint64
		)
		if !req.SkipAuth {
			var err error
			creds, gen, err = c.auth.Headers(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, apperrors.AuthFailure(0, nil).WithCause(err).WithAttempts(st.Attempt)
			}
		}

		release, err := c.pool.Acquire(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}

		st.Attempt++
		var (
			ex     *exchange
			appErr *apperrors.AppError
		)
		if err != nil {
			appErr = apperrors.Network(err)
		} else {
			ex, appErr, err = c.attempt(ctx, req, body, creds, release, stream, st)
			if err != nil {
				return ex, err
			}
			if appErr == nil {
				return ex, nil
			}
		}

		if apperrors.IsAuthFailure(appErr) {
			if req.SkipAuth || st.Refreshed || !c.backoff.CanRetry(st.Attempt) {
				return nil, appErr.WithAttempts(st.Attempt)
			}
			st.Refreshed = true
			log.Debug("credentials rejected, refreshing", logger.Fields(logger.FieldAttempt, st.Attempt, logger.FieldStatus, appErr.StatusCode))
			if err := c.auth.Refresh(ctx, gen); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, appErr.WithCause(err).WithAttempts(st.Attempt)
			}
			observability.AddEvent(ctx, "auth.refreshed", attribute.Int("attempt", st.Attempt))
			continue
		}

		st.LastErr = appErr
		if !c.backoff.CanRetry(st.Attempt) {
			return nil, appErr.WithAttempts(st.Attempt)
		}
		delay := c.backoff.Next(st.Attempt-1, appErr.RetryAfter)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return nil, appErr.WithAttempts(st.Attempt).WithDetail("next_delay_ms", delay.Milliseconds())
		}

		log.Warn("attempt failed, retrying", logger.Fields(
			logger.FieldAttempt, st.Attempt,
			logger.FieldStatus, appErr.StatusCode,
			logger.FieldDelay, delay.Milliseconds(),
			logger.FieldError, appErr.Error(),
		))
		c.metrics.RecordRetry(ctx, string(appErr.Code))
		observability.AddEvent(ctx, "retry",
			attribute.Int("attempt", st.Attempt),
			attribute.String(observability.AttrErrorCode, string(appErr.Code)),
			attribute.Int64("delay_ms", delay.Milliseconds()),
		)
		if err := resilience.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// admit waits for the rate limiter.
func (c *Client) admit(ctx context.Context, st *RetryState) error {
	start := time.Now()
	err := c.limiter.Admit(ctx)
	c.metrics.RecordAdmissionWait(ctx, time.Since(start))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperrors.RateLimitTimeout(err).WithAttempts(st.Attempt)
}

// attempt performs one network attempt holding the pool slot release.
// It returns a retryable or auth classification in appErr and terminal
// failures in err.
func (c *Client) attempt(ctx context.Context, req Request, body *payload, creds map[string]string, release func(), stream bool, st *RetryState) (*exchange, *apperrors.AppError, error) {
	timeout := c.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var (
		actx   context.Context
		cancel context.CancelFunc
		timer  *time.Timer
	)
	if stream {
		actx, cancel = context.WithCancel(ctx)
		timer = time.AfterFunc(timeout, cancel)
	} else {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	cleanup := func() {
		if timer != nil {
			timer.Stop()
		}
		cancel()
		release()
	}

	httpReq, err := c.buildRequest(actx, req, body, creds)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	method := httpReq.Method
	resp, err := c.http.Do(httpReq)
	if err != nil {
		cleanup()
		c.metrics.RecordAttempt(ctx, method, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, apperrors.Network(err), nil
	}
	c.metrics.RecordAttempt(ctx, method, resp.StatusCode)

	if resp.StatusCode < 400 {
		if stream {
			if !timer.Stop() {
				// The header timeout fired after the response arrived.
				_ = resp.Body.Close()
				cleanup()
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, nil, ctxErr
				}
				return nil, apperrors.Network(context.DeadlineExceeded), nil
			}
			return &exchange{resp: resp, cancel: cancel, release: release}, nil, nil
		}

		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		cleanup()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			return nil, apperrors.Network(fmt.Errorf("read response body: %w", err)), nil
		}
		return &exchange{resp: resp, body: data}, nil, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	cleanup()

	appErr := classify(resp.StatusCode, resp.Header, data, time.Now(), c.config.Retry.DefaultRetryAfter)
	if apperrors.IsClientError(appErr) {
		return &exchange{resp: resp, body: data}, nil, appErr.WithAttempts(st.Attempt)
	}
	return nil, appErr, nil
}

func (c *Client) poolRejected(ctx context.Context, name string, err error) {
	reason := "timeout"
	if errors.Is(err, resilience.ErrBulkheadFull) {
		reason = "full"
	}
	c.metrics.RecordPoolReject(ctx, reason)
	c.log.WithContext(ctx).Warn("connection pool saturated",
		logger.Fields("pool", name, "reason", reason, "max_conns", c.config.Pool.MaxConns))
}

// buildRequest constructs an *http.Request from the client config and request.
func (c *Client) buildRequest(ctx context.Context, req Request, body *payload, creds map[string]string) (*http.Request, error) {
	target, err := c.resolveURL(req.Path)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, normalizeMethod(req.Method), target, body.reader())
	if err != nil {
		return nil, apperrors.InvalidInput("create request").WithCause(err)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	h := httpReq.Header
	h.Set("Accept", "application/json")
	h.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		h.Set(k, v)
	}
	for k, v := range req.Headers {
		h.Set(k, v)
	}
	if body != nil && h.Get("Content-Type") == "" {
		ct := body.contentType
		if ct == "" {
			ct = "application/json"
		}
		h.Set("Content-Type", ct)
	}
	for k, v := range creds {
		h.Set(k, v)
	}
	return httpReq, nil
}

// resolveURL joins path to the base URL unless it is absolute.
func (c *Client) resolveURL(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if c.config.BaseURL == "" {
		return "", apperrors.InvalidInput(fmt.Sprintf("relative path %q without base_url", path))
	}
	if path == "" {
		return c.config.BaseURL, nil
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// finish records the outcome of a logical request.
func (c *Client) finish(ctx context.Context, span trace.Span, log *logger.Logger, method string, st *RetryState, status int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
		if outcome == "" {
			outcome = "canceled"
		}
	}
	c.metrics.RecordRequest(ctx, method, outcome, st.Elapsed)

	span.SetAttributes(attribute.Int(observability.AttrAttempts, st.Attempt))
	if status > 0 {
		span.SetAttributes(attribute.Int(observability.AttrStatusCode, status))
	}
	if err != nil {
		span.SetAttributes(attribute.String(observability.AttrErrorCode, outcome))
	}
	observability.EndSpan(span, err)

	fields := logger.Fields(
		logger.FieldAttempt, st.Attempt,
		logger.FieldStatus, status,
		logger.FieldDuration, st.Elapsed.Milliseconds(),
	)
	switch {
	case err == nil:
		log.Debug("request completed", fields)
	case outcome == "canceled" || apperrors.IsClientError(err):
		log.WithError(err).Debug("request ended", fields)
	default:
		log.WithError(err).Warn("request failed", fields)
	}
}

// ensureRequestID returns ctx carrying a request id, generating one if needed.
func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return logger.ContextWithRequestID(ctx, id), id
}
