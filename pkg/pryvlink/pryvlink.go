package pryvlink

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bft-labs/pryvlink/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/pryvlink/internal/adapters/http"
	"github.com/bft-labs/pryvlink/internal/app"
	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/pkg/log"
)

// TracerName is the instrumentation name of the spans pryvlink records.
const TracerName = "github.com/bft-labs/pryvlink"

// Re-exported types. See the internal definitions for field documentation.
type (
	// Config holds the configuration of a connection.
	Config = app.Config

	// Call is one API method invocation of a batch.
	Call = domain.Call

	// ResultHandler is the optional per-call callback of a batch.
	ResultHandler = domain.ResultHandler

	// Result is the decoded answer to one call.
	Result = domain.Result

	// APIError is an error descriptor returned by the service.
	APIError = domain.APIError

	// Event is one streamed event.
	Event = domain.Event

	// StreamSummary is the trailer of a streamed events query.
	StreamSummary = domain.StreamSummary

	// Meta is the response metadata (API version, server time).
	Meta = domain.Meta

	// Cursor is the persisted position of a follower.
	Cursor = domain.Cursor

	// AuthState is the authorization state of a connection.
	AuthState = domain.AuthState

	// TransportError describes a failed exchange.
	TransportError = domain.TransportError

	// HandlerError identifies the call or event whose handler failed.
	HandlerError = domain.HandlerError

	// ProgressFunc receives batch completion percentages.
	ProgressFunc = app.ProgressFunc

	// EventFunc receives streamed events.
	EventFunc = app.EventFunc
)

// Authorization states.
const (
	AuthError       = domain.AuthError
	AuthLoading     = domain.AuthLoading
	AuthInitialized = domain.AuthInitialized
	AuthAuthorized  = domain.AuthAuthorized
	AuthLogout      = domain.AuthLogout
)

// Errors matchable with errors.Is.
var (
	ErrTransport         = domain.ErrTransport
	ErrProtocolViolation = domain.ErrProtocolViolation
	ErrHandler           = domain.ErrHandler
	ErrTruncatedStream   = domain.ErrTruncatedStream
	ErrCanceled          = domain.ErrCanceled
	ErrInvalidConfig     = domain.ErrInvalidConfig
	ErrInvalidTransition = domain.ErrInvalidTransition
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, set APIEndpoint before calling New.
func DefaultConfig() Config {
	return app.DefaultConfig()
}

// Connection is a client bound to one API endpoint. All methods of the
// embedded app.Connection (API, Dispatch, Get, Post, GetEventsStreamed,
// CreateEventWithAttachment, CreateEventWithFile, AddPointsToHFEvent,
// AccessInfo, Logout, ClockSkew, DeltaTime, ServerTime, APIEndpoint,
// SetAPIEndpoint) are available on it.
type Connection struct {
	*app.Connection

	config  Config
	logger  log.Logger
	emitter *eventEmitterWrapper
}

// New creates a connection. Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Connection, error) {
	// Set defaults
	cfg.SetDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, token, err := app.ParseAPIEndpoint(cfg.APIEndpoint, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Apply options
	o := defaultOptions(defaultHTTPClient(cfg.HTTPTimeout))
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.Discard()
	}
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	transport := httpAdapter.NewTransport(o.httpClient, logger, base, token, httpAdapter.Options{
		Streaming:    !cfg.DisableStreaming,
		Gzip:         !cfg.DisableGzip,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		MaxRetries:   cfg.MaxRetries,
		RetryInitial: cfg.RetryInitial,
		RetryMax:     cfg.RetryMax,
	})
	tracer := o.tracerProvider.Tracer(TracerName)

	return &Connection{
		Connection: app.NewConnection(cfg, transport, logger, tracer, emitter),
		config:     cfg,
		logger:     logger,
		emitter:    emitter,
	}, nil
}

// Follow keeps sink up to date with the events matching query, polling every
// Config.PollInterval until ctx is canceled (or once, with Config.Once). The
// sync cursor is persisted in Config.StateDir.
func (c *Connection) Follow(ctx context.Context, query url.Values, sink EventFunc) error {
	if c.config.StateDir == "" {
		return fmt.Errorf("%w: state dir is required to follow", ErrInvalidConfig)
	}
	follower := app.NewFollower(app.FollowerConfig{
		PollInterval: c.config.PollInterval,
		Once:         c.config.Once,
		Query:        query,
	}, c.Connection, fs.NewCursorFileRepository(c.config.StateDir), c.logger, sink, c.emitter)
	return follower.Run(ctx)
}

// defaultHTTPClient bounds connecting and waiting for response headers by
// timeout. Bodies are not bounded: an events stream may run for as long as the
// server keeps sending.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}
