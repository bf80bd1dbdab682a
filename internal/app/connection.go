package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
)

// Connection is a client bound to one API endpoint. It owns its clock skew
// estimate and authorization state; it is safe for concurrent use, though
// each dispatch and stream runs its own calls sequentially.
type Connection struct {
	transport  ports.EndpointTransport
	dispatcher *Dispatcher
	decoder    *StreamDecoder
	skew       *ClockSkew
	auth       *AuthTracker
	logger     ports.Logger
	tracer     trace.Tracer
	chunkSize  int
}

// NewConnection wires a connection over transport.
func NewConnection(cfg Config, transport ports.EndpointTransport, logger ports.Logger, tracer trace.Tracer, emitter AuthEmitter) *Connection {
	skew := &ClockSkew{}
	return &Connection{
		transport:  transport,
		dispatcher: NewDispatcher(transport, logger, skew, tracer),
		decoder:    NewStreamDecoder(logger),
		skew:       skew,
		auth:       NewAuthTracker(logger, emitter),
		logger:     logger,
		tracer:     tracer,
		chunkSize:  cfg.ChunkSize,
	}
}

// API dispatches calls using the connection's configured chunk size.
func (c *Connection) API(ctx context.Context, calls []domain.Call, onProgress ProgressFunc) ([]domain.Result, error) {
	return c.dispatcher.Dispatch(ctx, calls, c.chunkSize, onProgress)
}

// Dispatch dispatches calls with an explicit chunk size. chunkSize <= 0 uses
// the configured one.
func (c *Connection) Dispatch(ctx context.Context, calls []domain.Call, chunkSize int, onProgress ProgressFunc) ([]domain.Result, error) {
	if chunkSize <= 0 {
		chunkSize = c.chunkSize
	}
	return c.dispatcher.Dispatch(ctx, calls, chunkSize, onProgress)
}

// Get performs a GET on path (relative to the API endpoint).
func (c *Connection) Get(ctx context.Context, p string, query url.Values) (domain.Result, error) {
	return c.exchange(ctx, &ports.Request{
		Method: http.MethodGet,
		Path:   p,
		Query:  query,
	})
}

// Post sends payload as JSON to path.
func (c *Connection) Post(ctx context.Context, p string, payload any) (domain.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.exchange(ctx, &ports.Request{
		Method:      http.MethodPost,
		Path:        p,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
}

// GetEventsStreamed runs an events query and hands every event to onEvent as
// it is decoded. The returned summary counts the events delivered.
func (c *Connection) GetEventsStreamed(ctx context.Context, query url.Values, onEvent EventFunc) (domain.StreamSummary, error) {
	ctx, span := c.tracer.Start(ctx, "pryvlink.events_stream")
	defer span.End()

	resp, err := c.transport.Do(ctx, &ports.Request{
		Method: http.MethodGet,
		Path:   "events",
		Query:  query,
	})
	if err != nil {
		return domain.StreamSummary{}, traceErr(span, err)
	}
	defer resp.Body.Close()

	summary, err := c.decoder.Decode(ctx, resp.Body, onEvent)
	if err != nil {
		return domain.StreamSummary{}, traceErr(span, err)
	}

	c.skew.Observe(resp.SentAt, resp.ReceivedAt, summary.Meta)
	span.SetAttributes(attribute.Int("pryvlink.events", summary.EventsCount))
	return summary, nil
}

// CreateEventWithAttachment creates event with one attached file read from content.
func (c *Connection) CreateEventWithAttachment(ctx context.Context, event any, filename string, content io.Reader) (domain.Result, error) {
	body, contentType, err := EncodeAttachment(event, filename, content)
	if err != nil {
		return nil, err
	}
	return c.exchange(ctx, &ports.Request{
		Method:      http.MethodPost,
		Path:        "events",
		Body:        body,
		ContentType: contentType,
	})
}

// CreateEventWithFile creates event with the file at filePath attached.
func (c *Connection) CreateEventWithFile(ctx context.Context, event any, filePath string) (domain.Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()
	return c.CreateEventWithAttachment(ctx, event, filePath, f)
}

// AddPointsToHFEvent appends data points to a high-frequency series event.
// Each point holds one value per field, in field order.
func (c *Connection) AddPointsToHFEvent(ctx context.Context, eventID string, fields []string, points [][]any) (domain.Result, error) {
	if eventID == "" {
		return nil, errors.New("event id is required")
	}
	for i, p := range points {
		if len(p) != len(fields) {
			return nil, fmt.Errorf("point %d has %d values for %d fields", i, len(p), len(fields))
		}
	}
	return c.Post(ctx, path.Join("events", url.PathEscape(eventID), "series"), map[string]any{
		"format": "flatJSON",
		"fields": fields,
		"points": points,
	})
}

// AccessInfo fetches the description of the access behind the token and
// updates the authorization state accordingly.
func (c *Connection) AccessInfo(ctx context.Context) (domain.Result, error) {
	if err := c.auth.TransitionTo(domain.AuthLoading, "access-info"); err != nil {
		return nil, err
	}
	res, err := c.Get(ctx, "access-info", nil)
	if err != nil {
		_ = c.auth.TransitionTo(domain.AuthError, err.Error())
		return nil, err
	}
	_ = c.auth.TransitionTo(domain.AuthAuthorized, "access-info")
	return res, nil
}

// Logout forgets the token and moves to the logout state.
func (c *Connection) Logout() error {
	base, _ := c.transport.Endpoint()
	if err := c.auth.TransitionTo(domain.AuthLogout, "logout"); err != nil {
		return err
	}
	c.transport.SetEndpoint(base, "")
	return nil
}

// AuthState returns the current authorization state.
func (c *Connection) AuthState() domain.AuthState {
	return c.auth.State()
}

// ClockSkew returns the latest estimate of server clock minus local clock.
func (c *Connection) ClockSkew() time.Duration {
	return c.skew.Current()
}

// DeltaTime returns the clock skew in seconds.
func (c *Connection) DeltaTime() float64 {
	return c.skew.Current().Seconds()
}

// ServerTime returns the estimated current server time in service units
// (fractional seconds since the epoch).
func (c *Connection) ServerTime() float64 {
	return float64(c.skew.ServerNow().UnixNano()) / float64(time.Second)
}

// APIEndpoint returns the endpoint with the token as user info.
func (c *Connection) APIEndpoint() string {
	base, token := c.transport.Endpoint()
	return FormatAPIEndpoint(base, token)
}

// SetAPIEndpoint switches the connection to another endpoint and token.
func (c *Connection) SetAPIEndpoint(raw, token string) error {
	base, tok, err := ParseAPIEndpoint(raw, token)
	if err != nil {
		return err
	}
	c.transport.SetEndpoint(base, tok)
	c.logger.Info("api endpoint updated", ports.String("endpoint", base.String()))
	return nil
}

// exchange performs a single non-batch request and decodes its result.
func (c *Connection) exchange(ctx context.Context, req *ports.Request) (domain.Result, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res domain.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		if ctx.Err() != nil {
			return nil, domain.Canceled(ctx.Err())
		}
		if isTimeout(err) {
			return nil, &domain.TransportError{ChunkStart: -1, Err: err}
		}
		return nil, fmt.Errorf("%w: decode %s %s: %v", domain.ErrProtocolViolation, req.Method, req.Path, err)
	}

	var meta domain.Meta
	if res.Has("meta") {
		if err := res.Decode("meta", &meta); err == nil {
			c.skew.Observe(resp.SentAt, resp.ReceivedAt, meta)
		}
	}
	return res, nil
}

func traceErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
