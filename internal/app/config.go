package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bft-labs/pryvlink/internal/domain"
)

// Default configuration values.
const (
	DefaultChunkSize    = 1000
	DefaultHTTPTimeout  = 60 * time.Second
	DefaultPollInterval = 30 * time.Second
)

// Config holds the configuration of a connection and of the follower loop.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// APIEndpoint is the user's API root, e.g. "https://{token}@{user}.pryv.me/".
	// A token embedded as URL user info is extracted into Token.
	APIEndpoint string

	// Token authenticates requests. Overrides a token found in APIEndpoint.
	Token string

	// ChunkSize is the maximum number of calls sent per batch request.
	// 0 means DefaultChunkSize; negative values send every batch as a
	// single request.
	ChunkSize int

	// HTTPTimeout bounds connecting and waiting for response headers. It
	// does not bound reading a body.
	HTTPTimeout time.Duration

	// DisableStreaming buffers response bodies fully before decoding them.
	DisableStreaming bool

	// DisableGzip stops asking the service for compressed responses.
	DisableGzip bool

	// RateLimit caps requests per second (0 = unlimited); RateBurst is the
	// bucket size.
	RateLimit float64
	RateBurst int

	// MaxRetries enables transport-level retries for network errors, 429 and
	// 5xx answers. Batch dispatch itself never retries.
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration

	// Follower settings.
	PollInterval time.Duration
	StateDir     string
	Once         bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		HTTPTimeout:  DefaultHTTPTimeout,
		RateBurst:    1,
		RetryInitial: 500 * time.Millisecond,
		RetryMax:     10 * time.Second,
		PollInterval: DefaultPollInterval,
	}
}

// SetDefaults fills zero values that have a non-zero default.
func (c *Config) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		return fmt.Errorf("%w: api endpoint is required", domain.ErrInvalidConfig)
	}
	if _, _, err := ParseAPIEndpoint(c.APIEndpoint, c.Token); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", domain.ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// ParseAPIEndpoint splits an API endpoint into its credential-free base URL
// and token. An explicit token wins over one embedded in the URL.
func ParseAPIEndpoint(raw, token string) (*url.URL, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, "", fmt.Errorf("parse api endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("api endpoint must be http(s), got %q", raw)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("api endpoint has no host: %q", raw)
	}
	if token == "" && u.User != nil {
		token = u.User.Username()
	}
	u.User = nil
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, token, nil
}

// FormatAPIEndpoint renders base with token as user info, the form the
// service hands out: https://{token}@{host}/.
func FormatAPIEndpoint(base *url.URL, token string) string {
	u := *base
	if token != "" {
		u.User = url.User(token)
	}
	return u.String()
}
