package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
	"github.com/bft-labs/pryvlink/pkg/backoff"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 64 << 10

// UserAgent is sent with every request.
var UserAgent = "pryvlink (" + runtime.GOOS + "/" + runtime.GOARCH + ")"

// Options tunes the transport.
type Options struct {
	// Streaming hands response bodies to callers as they arrive. When false
	// the body is read fully before Do returns.
	Streaming bool

	// Gzip requests compressed responses and decodes them on the fly.
	Gzip bool

	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// MaxRetries is the number of extra attempts for network errors, 429 and
	// 5xx answers. 0 disables retries.
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

type endpoint struct {
	base  *url.URL
	token string
}

// Transport implements ports.Transport over HTTP.
type Transport struct {
	client  ports.HTTPClient
	logger  ports.Logger
	opts    Options
	limiter *rate.Limiter
	ep      atomic.Pointer[endpoint]
}

// NewTransport creates a transport targeting base (the API endpoint, without
// credentials) and authenticating with token.
func NewTransport(client ports.HTTPClient, logger ports.Logger, base *url.URL, token string, opts Options) *Transport {
	t := &Transport{
		client: client,
		logger: logger,
		opts:   opts,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	t.SetEndpoint(base, token)
	return t
}

// SetEndpoint swaps the target endpoint and token. In-flight requests keep
// the values they started with.
func (t *Transport) SetEndpoint(base *url.URL, token string) {
	u := *base
	u.User = nil
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	t.ep.Store(&endpoint{base: &u, token: token})
}

// Endpoint returns the current base URL and token.
func (t *Transport) Endpoint() (*url.URL, string) {
	ep := t.ep.Load()
	u := *ep.base
	return &u, ep.token
}

// Do performs one exchange, retrying according to Options.
func (t *Transport) Do(ctx context.Context, req *ports.Request) (*ports.Response, error) {
	ep := t.ep.Load()

	target, err := ep.base.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, &domain.TransportError{ChunkStart: -1, Err: fmt.Errorf("build url: %w", err)}
	}
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	// Bodies are buffered so a retry can replay them.
	var payload []byte
	if req.Body != nil {
		if payload, err = io.ReadAll(req.Body); err != nil {
			return nil, &domain.TransportError{ChunkStart: -1, Err: fmt.Errorf("read request body: %w", err)}
		}
	}

	back := backoff.New(t.opts.RetryInitial, t.opts.RetryMax)
	for attempt := 0; ; attempt++ {
		resp, retryable, err := t.attempt(ctx, req, target, ep.token, payload)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, domain.Canceled(ctx.Err())
		}
		if !retryable || attempt >= t.opts.MaxRetries {
			return nil, err
		}

		t.logger.Warn("request failed, retrying",
			ports.String("method", req.Method),
			ports.String("path", req.Path),
			ports.Int("attempt", attempt+1),
			ports.Duration("backoff", back.Current()),
			ports.Err(err),
		)
		if werr := back.Wait(ctx); werr != nil {
			return nil, domain.Canceled(werr)
		}
	}
}

func (t *Transport) attempt(ctx context.Context, req *ports.Request, target *url.URL, token string, payload []byte) (*ports.Response, bool, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, false, domain.Canceled(err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, false, &domain.TransportError{ChunkStart: -1, Err: fmt.Errorf("create request: %w", err)}
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", token)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)
	if t.opts.Gzip {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}

	sentAt := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, true, &domain.TransportError{ChunkStart: -1, Err: fmt.Errorf("send request: %w", err)}
	}
	receivedAt := time.Now()

	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, retryableStatus(resp.StatusCode), statusError(resp)
	}

	rc, err := t.decodeBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, false, &domain.TransportError{ChunkStart: -1, StatusCode: resp.StatusCode, Err: err}
	}

	return &ports.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       rc,
		SentAt:     sentAt,
		ReceivedAt: receivedAt,
	}, false, nil
}

// decodeBody unwraps gzip and, when streaming is off, buffers the body.
func (t *Transport) decodeBody(resp *http.Response) (io.ReadCloser, error) {
	var rc io.ReadCloser = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		rc = &gzipBody{Reader: zr, raw: resp.Body}
	}
	if t.opts.Streaming {
		return rc, nil
	}

	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipBody) Close() error {
	return errors.Join(g.Reader.Close(), g.raw.Close())
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	te := &domain.TransportError{ChunkStart: -1, StatusCode: resp.StatusCode}

	var envelope struct {
		Error *domain.APIError `json:"error"`
	}
	if json.Unmarshal(b, &envelope) == nil && envelope.Error != nil {
		te.API = envelope.Error
		return te
	}
	if len(b) > 0 {
		te.Err = fmt.Errorf("%s", strings.TrimSpace(string(b)))
	}
	return te
}
