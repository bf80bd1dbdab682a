package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
)

// ProgressFunc receives the completion percentage once per processed chunk.
type ProgressFunc func(percent int)

// Dispatcher sends ordered call sequences to the batch endpoint in
// fixed-size chunks, one chunk at a time.
type Dispatcher struct {
	transport ports.Transport
	logger    ports.Logger
	skew      *ClockSkew
	tracer    trace.Tracer
}

// NewDispatcher creates a dispatcher. skew may be nil.
func NewDispatcher(transport ports.Transport, logger ports.Logger, skew *ClockSkew, tracer trace.Tracer) *Dispatcher {
	if skew == nil {
		skew = &ClockSkew{}
	}
	return &Dispatcher{
		transport: transport,
		logger:    logger,
		skew:      skew,
		tracer:    tracer,
	}
}

// Dispatch sends calls in chunks of at most chunkSize and returns one result
// per call, in submission order.
//
// Chunks are sent sequentially. Once a chunk is answered, the result
// handlers of its calls run in order, each returning before the next starts,
// then onProgress (if set) receives the percentage of calls processed so far.
// The last chunk always reports 100.
//
// Any transport failure, protocol violation, handler error or cancellation
// aborts the dispatch; no partial results are returned. Errors reported by
// the service for individual calls are ordinary results (see Result.Err).
func (d *Dispatcher) Dispatch(ctx context.Context, calls []domain.Call, chunkSize int, onProgress ProgressFunc) ([]domain.Result, error) {
	if len(calls) == 0 {
		return []domain.Result{}, nil
	}

	chunks := Partition(calls, chunkSize)
	dispatchID := newDispatchID()

	ctx, span := d.tracer.Start(ctx, "pryvlink.dispatch", trace.WithAttributes(
		attribute.String("pryvlink.dispatch_id", dispatchID),
		attribute.Int("pryvlink.calls", len(calls)),
		attribute.Int("pryvlink.chunks", len(chunks)),
	))
	defer span.End()

	results := make([]domain.Result, 0, len(calls))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, d.fail(span, dispatchID, chunk, domain.Canceled(err))
		}

		start := time.Now()
		chunkResults, err := d.sendChunk(ctx, chunk)
		if err != nil {
			return nil, d.fail(span, dispatchID, chunk, err)
		}

		for i, res := range chunkResults {
			call := chunk.Calls[i]
			if call.HandleResult == nil {
				continue
			}
			if err := call.HandleResult(ctx, res); err != nil {
				if ctx.Err() != nil {
					err = domain.Canceled(ctx.Err())
				} else {
					err = &domain.HandlerError{Index: chunk.Start + i, Method: call.Method, Err: err}
				}
				return nil, d.fail(span, dispatchID, chunk, err)
			}
		}

		results = append(results, chunkResults...)
		percent := Progress(chunk.End(), len(calls))

		d.logger.Debug("chunk dispatched",
			ports.String("dispatch", dispatchID),
			ports.Int("start", chunk.Start),
			ports.Int("calls", chunk.Size()),
			ports.Int("percent", percent),
			ports.Duration("duration", time.Since(start)),
		)

		if onProgress != nil {
			onProgress(percent)
		}
	}

	return results, nil
}

// sendChunk performs the exchange for one chunk and decodes its results.
func (d *Dispatcher) sendChunk(ctx context.Context, chunk domain.Chunk) ([]domain.Result, error) {
	ctx, span := d.tracer.Start(ctx, "pryvlink.chunk", trace.WithAttributes(
		attribute.Int("pryvlink.chunk_start", chunk.Start),
		attribute.Int("pryvlink.chunk_size", chunk.Size()),
	))
	defer span.End()

	body, err := json.Marshal(chunk.Wire())
	if err != nil {
		return nil, fmt.Errorf("marshal chunk at %d: %w", chunk.Start, err)
	}

	resp, err := d.transport.Do(ctx, &ports.Request{
		Method:      http.MethodPost,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
	if err != nil {
		return nil, atChunk(err, chunk.Start)
	}
	defer resp.Body.Close()

	results, meta, err := decodeBatch(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.Canceled(ctx.Err())
		}
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			return nil, &domain.TransportError{ChunkStart: chunk.Start, StatusCode: resp.StatusCode, API: apiErr, Err: apiErr}
		}
		if isTimeout(err) {
			return nil, &domain.TransportError{ChunkStart: chunk.Start, Err: err}
		}
		return nil, fmt.Errorf("%w: chunk at %d: %v", domain.ErrProtocolViolation, chunk.Start, err)
	}
	if len(results) != chunk.Size() {
		return nil, fmt.Errorf("%w: chunk at %d: got %d results for %d calls",
			domain.ErrProtocolViolation, chunk.Start, len(results), chunk.Size())
	}

	d.skew.Observe(resp.SentAt, resp.ReceivedAt, meta)
	return results, nil
}

func (d *Dispatcher) fail(span trace.Span, dispatchID string, chunk domain.Chunk, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.logger.Error("dispatch failed",
		ports.String("dispatch", dispatchID),
		ports.Int("start", chunk.Start),
		ports.Err(err),
	)
	return err
}

// batchEnvelope is the object form of a batch answer.
type batchEnvelope struct {
	Results []domain.Result  `json:"results"`
	Meta    domain.Meta      `json:"meta"`
	Error   *domain.APIError `json:"error"`
}

// decodeBatch accepts either a bare result array or {"results": [...], "meta": {...}}.
func decodeBatch(r io.Reader) ([]domain.Result, domain.Meta, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, domain.Meta{}, fmt.Errorf("decode results: %w", err)
	}

	switch firstByte(raw) {
	case '[':
		var results []domain.Result
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, domain.Meta{}, fmt.Errorf("decode results: %w", err)
		}
		return results, domain.Meta{}, nil
	case '{':
		var env batchEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, domain.Meta{}, fmt.Errorf("decode results: %w", err)
		}
		if env.Error != nil {
			return nil, env.Meta, env.Error
		}
		if env.Results == nil {
			return nil, env.Meta, errors.New("response has no results")
		}
		return env.Results, env.Meta, nil
	default:
		return nil, domain.Meta{}, errors.New("response is neither an array nor an object")
	}
}

func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}

// atChunk tags a transport failure with the index of the chunk's first call.
func atChunk(err error, start int) error {
	var te *domain.TransportError
	if errors.As(err, &te) {
		tagged := *te
		tagged.ChunkStart = start
		return &tagged
	}
	return err
}

func newDispatchID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "unknown"
	}
	return id.String()
}
