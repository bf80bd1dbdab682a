package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the pryvlink domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrTransport is returned when a request could not be exchanged with the
	// service: network failure or non-success HTTP status.
	ErrTransport = errors.New("pryvlink: transport failure")

	// ErrProtocolViolation is returned when the service answers with a payload
	// that breaks the batch or stream contract (result count mismatch,
	// malformed envelope).
	ErrProtocolViolation = errors.New("pryvlink: protocol violation")

	// ErrHandler is returned when a caller supplied result or event handler fails.
	ErrHandler = errors.New("pryvlink: handler failed")

	// ErrTruncatedStream is returned when a streamed body ends before its
	// envelope is closed.
	ErrTruncatedStream = errors.New("pryvlink: truncated stream")

	// ErrCanceled is returned when the caller aborted the operation.
	ErrCanceled = errors.New("pryvlink: canceled")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pryvlink: invalid configuration")

	// ErrInvalidTransition is returned when an auth state change is not allowed.
	ErrInvalidTransition = errors.New("pryvlink: invalid auth state transition")
)

// APIError is the error descriptor the service embeds in a result or in a
// whole-request error body: {"error": {"id": ..., "message": ...}}.
type APIError struct {
	ID      string `json:"id" mapstructure:"id"`
	Message string `json:"message" mapstructure:"message"`
	Data    any    `json:"data,omitempty" mapstructure:"data"`
}

func (e *APIError) Error() string {
	if e.ID == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.ID, e.Message)
}

// TransportError describes a failed exchange for the chunk starting at ChunkStart.
type TransportError struct {
	// ChunkStart is the index, in the submitted call sequence, of the first
	// call of the failed chunk. It is -1 for requests that are not part of a
	// batch dispatch.
	ChunkStart int

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// API holds the service error descriptor when the body carried one.
	API *APIError

	Err error
}

func (e *TransportError) Error() string {
	var msg string
	switch {
	case e.API != nil:
		msg = fmt.Sprintf("server returned %d: %s", e.StatusCode, e.API.Error())
	case e.StatusCode != 0 && e.Err != nil:
		msg = fmt.Sprintf("server returned %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		msg = fmt.Sprintf("server returned %d", e.StatusCode)
	case e.Err != nil:
		msg = e.Err.Error()
	default:
		msg = "unknown failure"
	}
	if e.ChunkStart >= 0 {
		return fmt.Sprintf("pryvlink: chunk at %d: %s", e.ChunkStart, msg)
	}
	return "pryvlink: " + msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport so callers can match without a type assertion.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// HandlerError identifies which call or streamed event made a handler fail.
type HandlerError struct {
	// Index is the position of the call in the submitted sequence, or the
	// ordinal of the event within the stream.
	Index  int
	Method string
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("pryvlink: handler for call %d (%s): %v", e.Index, e.Method, e.Err)
	}
	return fmt.Sprintf("pryvlink: handler for event %d: %v", e.Index, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Is(target error) bool { return target == ErrHandler }

// Canceled wraps a context error so it matches both ErrCanceled and the
// original context error.
func Canceled(err error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}
