package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/IshaanChat/ubiquitous-octo-pancake/errors"
)

// Request describes an outbound HTTP request. The client never mutates it.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string
	// Path is appended to the client's BaseURL unless it is an absolute URL.
	Path string
	// Query are URL query parameters.
	Query map[string]string
	// Headers are request-specific headers, matched case-insensitively and
	// applied over the client defaults.
	Headers map[string]string
	// Body accepts []byte, string, io.Reader, or any value that will be
	// JSON-encoded. It is encoded once and replayed on every attempt.
	Body any
	// Timeout overrides the client's per-attempt timeout.
	Timeout time.Duration
	// SkipAuth sends the request without credentials.
	SkipAuth bool
}

// Response is the result of an HTTP request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the raw response body.
	Body []byte
	// Attempts is the number of network attempts it took.
	Attempts int
	// RequestID correlates the request with its log lines.
	RequestID string
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

// RetryState tracks one logical request across its attempts.
type RetryState struct {
	// Attempt is the number of network attempts made so far.
	Attempt int
	// Elapsed is the time since the request started.
	Elapsed time.Duration
	// LastErr is the most recent retryable failure.
	LastErr error
	// Refreshed is set once credentials were refreshed for this request.
	Refreshed bool

	start time.Time
}

func newRetryState() *RetryState {
	return &RetryState{start: time.Now()}
}

func (s *RetryState) done() {
	s.Elapsed = time.Since(s.start)
}

// payload is an encoded request body.
type payload struct {
	data        []byte
	contentType string
}

func (p *payload) reader() io.Reader {
	if p == nil {
		return nil
	}
	return bytes.NewReader(p.data)
}

// encodeBody converts a body value into replayable bytes.
func encodeBody(body any) (*payload, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return &payload{data: v}, nil
	case string:
		return &payload{data: []byte(v)}, nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, apperrors.InvalidInput("read request body").WithCause(err)
		}
		return &payload{data: data}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, apperrors.InvalidInput("encode request body").WithCause(err)
		}
		return &payload{data: data, contentType: "application/json"}, nil
	}
}

func normalizeMethod(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}
