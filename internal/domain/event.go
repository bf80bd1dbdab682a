package domain

import (
	"encoding/json"
	"time"
)

// Event is one item of a streamed events query. It is handed to a callback
// and then dropped; the decoder never keeps a reference to it.
type Event map[string]any

// ID returns the event id, or "" if missing.
func (e Event) ID() string { return e.str("id") }

// StreamID returns the id of the stream the event belongs to.
func (e Event) StreamID() string { return e.str("streamId") }

// Type returns the event type, e.g. "note/txt".
func (e Event) Type() string { return e.str("type") }

// Time returns the event time. The service expresses times as seconds since
// the Unix epoch with a fractional part.
func (e Event) Time() time.Time {
	return SecondsToTime(e.num("time"))
}

// Modified returns the last modification time of the event.
func (e Event) Modified() time.Time {
	return SecondsToTime(e.num("modified"))
}

// Decode decodes the event into a typed value using json tags.
func (e Event) Decode(out any) error {
	return decodeInto(map[string]any(e), out)
}

func (e Event) str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e Event) num(key string) float64 {
	switch v := e[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// SecondsToTime converts service time (fractional seconds) to time.Time.
func SecondsToTime(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(sec*float64(time.Second)))
}

// Meta is the metadata object the service appends to its responses.
type Meta struct {
	APIVersion string  `json:"apiVersion"`
	ServerTime float64 `json:"serverTime"`
	Serial     string  `json:"serial,omitempty"`
}

// HasServerTime reports whether the metadata carries a server timestamp.
func (m Meta) HasServerTime() bool { return m.ServerTime > 0 }

// StreamSummary holds the trailer of a streamed events query, available
// only once the whole stream has been consumed.
type StreamSummary struct {
	// EventsCount is the number of events handed to the callback.
	EventsCount int

	// DeletionsCount is the number of deletion records in the trailer.
	DeletionsCount int

	Meta Meta

	// Trailer keeps any other top-level field verbatim.
	Trailer map[string]json.RawMessage
}
