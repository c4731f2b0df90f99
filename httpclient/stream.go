package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/IshaanChat/ubiquitous-octo-pancake/errors"
	"github.com/IshaanChat/ubiquitous-octo-pancake/httpclient/sse"
	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
	"github.com/IshaanChat/ubiquitous-octo-pancake/observability"
)

// ErrStreamClosed is returned by reads after Close.
var ErrStreamClosed = errors.New("httpclient: stream closed")

// OpenStream sends req with the same admission, auth and retry rules as
// Execute and returns the response body as a Stream once headers arrive.
// The request timeout bounds only the wait for headers. Failures after
// that are STREAM_ERROR and are never retried.
//
// The caller must Close the stream unless it is read to the end.
func (c *Client) OpenStream(ctx context.Context, req Request) (*Stream, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	ctx, rid := ensureRequestID(ctx)
	method := normalizeMethod(req.Method)
	ctx, span := observability.StartSpan(ctx, observability.SpanHTTPStream,
		attribute.String(observability.AttrHTTPMethod, method),
		attribute.String(observability.AttrURL, req.Path),
		attribute.String(observability.AttrRequestID, rid),
	)
	log := c.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldMethod, method, logger.FieldURL, req.Path))

	st := newRetryState()
	ex, err := c.exchange(ctx, req, body, true, st, log)
	if err != nil {
		st.done()
		status := 0
		if ex != nil {
			status = ex.resp.StatusCode
		}
		c.finish(ctx, span, log, method, st, status, err)
		return nil, err
	}

	c.metrics.StreamOpened(ctx)
	log.Debug("stream opened", logger.Fields(logger.FieldAttempt, st.Attempt, logger.FieldStatus, ex.resp.StatusCode))

	s := &Stream{
		StatusCode: ex.resp.StatusCode,
		Header:     ex.resp.Header,
		Attempts:   st.Attempt,
		RequestID:  rid,
		ctx:        ctx,
		body:       ex.resp.Body,
		br:         bufio.NewReaderSize(ex.resp.Body, c.config.Stream.ChunkSize),
		chunkSize:  c.config.Stream.ChunkSize,
		maxLine:    c.config.Stream.MaxLineSize,
		cancel:     ex.cancel,
		release:    ex.release,
	}
	status := ex.resp.StatusCode
	s.onClose = func(err error) {
		c.metrics.StreamClosed(ctx)
		st.done()
		c.finish(ctx, span, log, method, st, status, err)
	}
	return s, nil
}

// Stream is an open response body read incrementally. Reads must come from
// one goroutine; Close may be called from any goroutine.
type Stream struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Attempts is the number of attempts it took to open the stream.
	Attempts int
	// RequestID correlates the stream with its log lines.
	RequestID string

	ctx       context.Context
	body      io.ReadCloser
	br        *bufio.Reader
	chunkSize int
	maxLine   int
	cancel    context.CancelFunc
	release   func()
	onClose   func(error)

	// err is the terminal read result, owned by the reading goroutine.
	err    error
	closed atomic.Bool
	once   sync.Once
}

// Next returns the next chunk of at most ChunkSize bytes as a fresh slice.
// It returns io.EOF at the end of the body.
func (s *Stream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}

	buf := make([]byte, s.chunkSize)
	for {
		n, err := s.br.Read(buf)
		if n > 0 {
			// A read error alongside data resurfaces on the next call.
			return buf[:n], nil
		}
		if err != nil {
			return nil, s.fail(err)
		}
	}
}

// NextLine returns the next line with its trailing newline and carriage
// return stripped. Lines may span any number of chunks. A final line
// without a newline is returned before io.EOF.
func (s *Stream) NextLine() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.closed.Load() {
		return "", ErrStreamClosed
	}

	var line []byte
	for {
		frag, err := s.br.ReadSlice('\n')
		line = append(line, frag...)

		switch {
		case err == nil:
			line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
			if len(line) > s.maxLine {
				return "", s.fail(s.lineTooLong())
			}
			return string(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			if len(line) > s.maxLine+1 {
				return "", s.fail(s.lineTooLong())
			}
		case errors.Is(err, io.EOF) && len(line) > 0:
			line = bytes.TrimSuffix(line, []byte{'\r'})
			if len(line) > s.maxLine {
				return "", s.fail(s.lineTooLong())
			}
			return string(line), nil
		default:
			return "", s.fail(err)
		}
	}
}

// Chunks iterates over the body chunks. The stream is closed when the loop
// ends, including when the consumer breaks out early. io.EOF is not yielded.
func (s *Stream) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer s.Close()
		for {
			chunk, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Lines iterates over the body lines. It closes the stream like Chunks.
func (s *Stream) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for {
			line, err := s.NextLine()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Events returns a server-sent events reader over the line stream.
// Closing the reader closes the stream.
func (s *Stream) Events() sse.Reader {
	return sse.NewReader(s)
}

// Close cancels the request and closes the body without draining it.
// It releases the pool slot and is safe to call more than once.
func (s *Stream) Close() error {
	s.shutdown(nil)
	return nil
}

// fail records the terminal outcome of a read and releases the stream.
func (s *Stream) fail(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		s.err = io.EOF
		s.shutdown(nil)
		return io.EOF
	case s.closed.Load():
		return ErrStreamClosed
	case s.ctx.Err() != nil:
		s.err = s.ctx.Err()
	default:
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.Stream(err)
		}
		s.err = appErr
	}
	s.shutdown(s.err)
	return s.err
}

func (s *Stream) lineTooLong() error {
	return apperrors.Stream(fmt.Errorf("line exceeds %d bytes", s.maxLine))
}

func (s *Stream) shutdown(err error) {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		_ = s.body.Close()
		s.release()
		if s.onClose != nil {
			s.onClose(err)
		}
	})
}
