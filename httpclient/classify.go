package httpclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/IshaanChat/ubiquitous-octo-pancake/errors"
)

// classify maps a response status to the error taxonomy. It returns nil
// for 1xx, 2xx and 3xx. throttleDelay stands in for a missing Retry-After.
func classify(status int, header http.Header, body []byte, now time.Time, throttleDelay time.Duration) *apperrors.AppError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.AuthFailure(status, body)
	case status == http.StatusTooManyRequests:
		wait := parseRetryAfter(header.Get("Retry-After"), now)
		if wait <= 0 {
			wait = throttleDelay
		}
		return apperrors.Throttled(body, wait)
	case status >= 500:
		return apperrors.Server(status, body)
	case status >= 400:
		return apperrors.Client(status, body)
	default:
		return nil
	}
}

const maxRetryAfterSeconds = int64(1<<63-1) / int64(time.Second)

// parseRetryAfter reads delta-seconds or an HTTP-date. Missing, malformed
// or past values yield zero, which leaves the delay to the backoff policy.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		if secs > maxRetryAfterSeconds {
			secs = maxRetryAfterSeconds
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
