package domain

import "time"

// Cursor is the persistent position of an incremental sync. ModifiedSince is
// a service timestamp: the next sync asks for everything modified after it.
type Cursor struct {
	ModifiedSince float64   `json:"modified_since"`
	LastSyncAt    time.Time `json:"last_sync_at"`
	EventsSeen    uint64    `json:"events_seen"`
	DeletionsSeen uint64    `json:"deletions_seen"`
}

// Advance moves the cursor after a successful sync pass.
func (c *Cursor) Advance(summary StreamSummary, at time.Time) {
	if summary.Meta.ServerTime > c.ModifiedSince {
		c.ModifiedSince = summary.Meta.ServerTime
	}
	c.LastSyncAt = at
	c.EventsSeen += uint64(summary.EventsCount)
	c.DeletionsSeen += uint64(summary.DeletionsCount)
}

// Empty returns true if the cursor has never been advanced.
func (c Cursor) Empty() bool {
	return c.ModifiedSince == 0 && c.LastSyncAt.IsZero()
}
