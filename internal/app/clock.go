package app

import (
	"sync/atomic"
	"time"

	"github.com/bft-labs/pryvlink/internal/domain"
)

// ClockSkew tracks the estimated offset between the local and server clocks
// of one connection. Updates are last-write-wins with no smoothing; readers
// always observe a complete sample.
type ClockSkew struct {
	sample atomic.Pointer[skewSample]
}

type skewSample struct {
	skew time.Duration
	at   time.Time
}

// Update records the skew measured by one exchange. The server is assumed to
// have stamped serverTime halfway between sent and received.
func (c *ClockSkew) Update(sent, received, serverTime time.Time) time.Duration {
	midpoint := sent.Add(received.Sub(sent) / 2)
	skew := serverTime.Sub(midpoint)
	c.sample.Store(&skewSample{skew: skew, at: received})
	return skew
}

// Observe updates the estimate from response metadata. Metadata without a
// server time leaves the current estimate unchanged.
func (c *ClockSkew) Observe(sent, received time.Time, meta domain.Meta) (time.Duration, bool) {
	if !meta.HasServerTime() {
		return c.Current(), false
	}
	return c.Update(sent, received, domain.SecondsToTime(meta.ServerTime)), true
}

// Current returns the latest estimate, 0 if none was measured yet.
func (c *ClockSkew) Current() time.Duration {
	if s := c.sample.Load(); s != nil {
		return s.skew
	}
	return 0
}

// Known reports whether at least one exchange carried a server time.
func (c *ClockSkew) Known() bool {
	return c.sample.Load() != nil
}

// ServerNow returns the local clock shifted by the current estimate.
func (c *ClockSkew) ServerNow() time.Time {
	return time.Now().Add(c.Current())
}
