package ports

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request describes one exchange with the service. Path is relative to the
// connection's API endpoint ("" targets the batch root).
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        io.Reader
	ContentType string
}

// Response is the service answer. Body must be closed by the caller.
// SentAt and ReceivedAt bracket the exchange on the local clock and feed
// clock skew estimation.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	SentAt     time.Time
	ReceivedAt time.Time
}

// Transport performs a single request/response exchange with the service.
// Implementations return a *domain.TransportError for network failures and
// non-success statuses; a returned Response always has a 2xx status.
//
// Depending on configuration the body is either read incrementally from the
// network or fully buffered; callers must not depend on which.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// EndpointTransport is a Transport whose target endpoint and token can be
// swapped at runtime, e.g. when a rotated token is loaded from config.
type EndpointTransport interface {
	Transport
	SetEndpoint(base *url.URL, token string)
	Endpoint() (*url.URL, string)
}
