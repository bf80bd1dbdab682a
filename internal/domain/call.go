package domain

import "context"

// ResultHandler receives the result of one call once its chunk is answered.
// Handlers run one at a time in submission order; a handler that needs to do
// asynchronous work blocks until that work is done.
type ResultHandler func(ctx context.Context, res Result) error

// Call is one named remote operation submitted as part of a batch.
// Calls are not modified once submitted.
type Call struct {
	// Method is the remote method identifier, e.g. "events.get".
	Method string `json:"method"`

	// Params is the method payload. A nil value is sent as an empty object.
	Params any `json:"params"`

	// HandleResult is local only and never sent to the service.
	HandleResult ResultHandler `json:"-"`
}

// wireCall is the transmitted form of a Call.
type wireCall struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Wire returns the JSON shape of the call as sent to the service.
func (c Call) Wire() any {
	params := c.Params
	if params == nil {
		params = map[string]any{}
	}
	return wireCall{Method: c.Method, Params: params}
}
