// Package pryvlink provides a client for Pryv-style data-collection APIs.
//
// Example usage:
//
//	cfg := pryvlink.DefaultConfig()
//	cfg.APIEndpoint = "https://{token}@alice.pryv.me/"
//	cfg.StateDir = "/var/lib/myapp"
//	err := pryvlink.Follow(ctx, cfg, url.Values{"streams[]": {"diary"}}, func(ev pryvlink.Event) error {
//	    fmt.Println(ev.ID(), ev.Type())
//	    return nil
//	})
//
// For the full API (batches, attachments, series points) use
// github.com/bft-labs/pryvlink/pkg/pryvlink.
package pryvlink

import (
	"context"
	"net/url"

	"github.com/bft-labs/pryvlink/pkg/pryvlink"
)

// Config holds the configuration of a connection.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = pryvlink.Config

// Event is one streamed event.
type Event = pryvlink.Event

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set APIEndpoint.
func DefaultConfig() Config {
	return pryvlink.DefaultConfig()
}

// Connect validates cfg and returns a connection.
func Connect(cfg Config, opts ...pryvlink.Option) (*pryvlink.Connection, error) {
	return pryvlink.New(cfg, opts...)
}

// Follow streams the events matching query to sink, then keeps polling for
// changes until ctx is canceled. Use cfg.Once = true for a single pass.
func Follow(ctx context.Context, cfg Config, query url.Values, sink func(Event) error, opts ...pryvlink.Option) error {
	conn, err := pryvlink.New(cfg, opts...)
	if err != nil {
		return err
	}
	return conn.Follow(ctx, query, sink)
}
