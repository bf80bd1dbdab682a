package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Result is the payload returned by the service for one call: a
// method-specific success object (e.g. {"events": [...]}) or an error
// object {"error": {"id", "message"}}.
type Result map[string]any

// Err returns the error descriptor carried by the result, or nil on success.
func (r Result) Err() *APIError {
	raw, ok := r["error"]
	if !ok || raw == nil {
		return nil
	}
	var apiErr APIError
	if err := decodeInto(raw, &apiErr); err != nil {
		return &APIError{Message: fmt.Sprint(raw)}
	}
	return &apiErr
}

// Has reports whether the result carries the given top-level field.
func (r Result) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Decode decodes the value stored under key into out. An empty key decodes
// the whole result.
func (r Result) Decode(key string, out any) error {
	if key == "" {
		return decodeInto(map[string]any(r), out)
	}
	raw, ok := r[key]
	if !ok {
		return fmt.Errorf("result has no %q field", key)
	}
	return decodeInto(raw, out)
}

// decodeInto maps a generic JSON value onto a typed value using json tags.
func decodeInto(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
