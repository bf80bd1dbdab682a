package pryvlink

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/pryvlink/internal/ports"
	"github.com/bft-labs/pryvlink/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Option configures optional behavior of a Connection.
type Option func(*options)

type options struct {
	httpClient     ports.HTTPClient
	logger         log.Logger
	eventHandler   EventHandler
	tracerProvider trace.TracerProvider
}

func defaultOptions(client *http.Client) options {
	return options{
		httpClient:     client,
		logger:         log.Discard(),
		tracerProvider: otel.GetTracerProvider(),
	}
}

// WithHTTPClient sets a custom HTTP client for API communication.
// If not provided, a client that applies Config.HTTPTimeout to connecting
// and to response headers (not to the body) is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for connection notifications.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// dispatch and stream spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}
