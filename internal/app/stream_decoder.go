package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
)

// EventFunc receives each streamed event. It runs synchronously on the
// decoding goroutine; returning an error aborts the stream.
type EventFunc func(ev domain.Event) error

const (
	eventsKey      = "events"
	deletionsKey   = "eventDeletions"
	metaKey        = "meta"
	eventsCountKey = "eventsCount"
	errorKey       = "error"
)

// StreamDecoder incrementally decodes an events query response of the form
//
//	{"events": [ ... ], "eventDeletions": [ ... ], "meta": { ... }, ...}
//
// without holding the events array in memory. Top-level keys may come in
// any order. A bare top-level array of events is accepted too.
type StreamDecoder struct {
	logger ports.Logger
}

// NewStreamDecoder creates a stream decoder.
func NewStreamDecoder(logger ports.Logger) *StreamDecoder {
	return &StreamDecoder{logger: logger}
}

// Decode reads body until the envelope closes, calling onEvent once per
// event, and returns the trailer summary. body may be a live network stream
// or a fully buffered reader; both take the same path. Bytes are only pulled
// from body once the already buffered ones have been consumed.
func (d *StreamDecoder) Decode(ctx context.Context, body io.Reader, onEvent EventFunc) (domain.StreamSummary, error) {
	summary := domain.StreamSummary{}
	dec := json.NewDecoder(body)

	tok, err := dec.Token()
	if err != nil {
		return summary, d.streamErr(ctx, err)
	}

	switch tok {
	case json.Delim('['):
		n, err := d.events(ctx, dec, onEvent)
		summary.EventsCount = n
		if err != nil {
			return summary, err
		}
		if _, err := dec.Token(); err != nil {
			return summary, d.streamErr(ctx, err)
		}
		return summary, nil
	case json.Delim('{'):
	default:
		return summary, fmt.Errorf("%w: unexpected stream start %v", domain.ErrProtocolViolation, tok)
	}

	var reported *int
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return summary, d.streamErr(ctx, err)
		}
		key, _ := keyTok.(string)

		switch key {
		case eventsKey:
			if err := d.expectArray(ctx, dec); err != nil {
				if errors.Is(err, errNullArray) {
					continue
				}
				return summary, err
			}
			n, err := d.events(ctx, dec, onEvent)
			summary.EventsCount += n
			if err != nil {
				return summary, err
			}
			if _, err := dec.Token(); err != nil {
				return summary, d.streamErr(ctx, err)
			}
		case deletionsKey:
			n, err := d.skipArray(ctx, dec)
			summary.DeletionsCount += n
			if err != nil {
				return summary, err
			}
		case metaKey:
			if err := dec.Decode(&summary.Meta); err != nil {
				return summary, d.streamErr(ctx, err)
			}
		case eventsCountKey:
			var n int
			if err := dec.Decode(&n); err != nil {
				return summary, d.streamErr(ctx, err)
			}
			reported = &n
		case errorKey:
			var apiErr domain.APIError
			if err := dec.Decode(&apiErr); err != nil {
				return summary, d.streamErr(ctx, err)
			}
			return summary, &apiErr
		default:
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return summary, d.streamErr(ctx, err)
			}
			if summary.Trailer == nil {
				summary.Trailer = make(map[string]json.RawMessage)
			}
			summary.Trailer[key] = raw
		}
	}

	// Closing brace of the envelope.
	if _, err := dec.Token(); err != nil {
		return summary, d.streamErr(ctx, err)
	}

	if reported != nil && *reported != summary.EventsCount {
		return summary, fmt.Errorf("%w: server reported %d events, stream carried %d",
			domain.ErrProtocolViolation, *reported, summary.EventsCount)
	}

	d.logger.Debug("stream decoded",
		ports.Int("events", summary.EventsCount),
		ports.Int("deletions", summary.DeletionsCount),
	)
	return summary, nil
}

var errNullArray = errors.New("null array")

// expectArray consumes the opening bracket of an array value.
func (d *StreamDecoder) expectArray(ctx context.Context, dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return d.streamErr(ctx, err)
	}
	if tok == nil {
		return errNullArray
	}
	if tok != json.Delim('[') {
		return fmt.Errorf("%w: expected array, got %v", domain.ErrProtocolViolation, tok)
	}
	return nil
}

// events decodes array items one by one until the closing bracket, which is
// left for the caller.
func (d *StreamDecoder) events(ctx context.Context, dec *json.Decoder, onEvent EventFunc) (int, error) {
	n := 0
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return n, domain.Canceled(err)
		}
		var ev domain.Event
		if err := dec.Decode(&ev); err != nil {
			return n, d.streamErr(ctx, err)
		}
		if err := onEvent(ev); err != nil {
			return n, &domain.HandlerError{Index: n, Err: err}
		}
		n++
	}
	return n, nil
}

// skipArray counts and discards the items of an array value.
func (d *StreamDecoder) skipArray(ctx context.Context, dec *json.Decoder) (int, error) {
	if err := d.expectArray(ctx, dec); err != nil {
		if errors.Is(err, errNullArray) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for dec.More() {
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return n, d.streamErr(ctx, err)
		}
		n++
	}
	if _, err := dec.Token(); err != nil {
		return n, d.streamErr(ctx, err)
	}
	return n, nil
}

// streamErr classifies a decoding failure.
func (d *StreamDecoder) streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return domain.Canceled(ctx.Err())
	}
	if errors.Is(err, domain.ErrCanceled) {
		return err
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case isTimeout(err):
		return &domain.TransportError{ChunkStart: -1, Err: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", domain.ErrTruncatedStream, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("%w: %v", domain.ErrProtocolViolation, err)
	default:
		// The body broke off mid-read (connection reset and the like).
		return fmt.Errorf("%w: %w", domain.ErrTruncatedStream, err)
	}
}

// isTimeout reports a client-side deadline hit while reading a body.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
