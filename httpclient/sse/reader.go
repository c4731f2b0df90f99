// Package sse decodes server-sent events from a line stream.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// Event represents a single server-sent event.
type Event struct {
	// Event is the event type from "event:" lines. Empty for data-only events.
	Event string
	// Data is the payload. Multiple "data:" lines are joined with newlines.
	Data string
	// ID is the last event ID seen on the stream.
	ID string
	// Retry is the reconnection delay announced by the server, if any.
	Retry time.Duration
}

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next event. Returns io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying stream.
	Close() error
}

// LineSource yields lines without their line terminators.
type LineSource interface {
	NextLine() (string, error)
	Close() error
}

type reader struct {
	src    LineSource
	lastID string
}

// NewReader creates an event reader over src.
func NewReader(src LineSource) Reader {
	return &reader{src: src}
}

// NewReaderFrom creates an event reader over a raw body.
func NewReaderFrom(body io.ReadCloser) Reader {
	return NewReader(&scannerSource{scanner: bufio.NewScanner(body), body: body})
}

// Next returns the next event. Events without data are dropped.
func (r *reader) Next() (*Event, error) {
	var (
		event   Event
		data    strings.Builder
		hasData bool
	)

	for {
		line, err := r.src.NextLine()
		if errors.Is(err, io.EOF) {
			// An unterminated trailing event is still delivered.
			if hasData {
				break
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		if line == "" {
			if hasData {
				break
			}
			event = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			event.Event = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms >= 0 {
				event.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	event.Data = data.String()
	event.ID = r.lastID
	return &event, nil
}

// Close releases the underlying stream.
func (r *reader) Close() error {
	return r.src.Close()
}

// parseLine splits a line into field and value, dropping one leading space
// from the value.
func parseLine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

type scannerSource struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

func (s *scannerSource) NextLine() (string, error) {
	if s.scanner.Scan() {
		return strings.TrimSuffix(s.scanner.Text(), "\r"), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scannerSource) Close() error {
	return s.body.Close()
}
