package domain

// Chunk is a contiguous, order-preserving slice of calls sent in a single
// exchange. Start is the index of Calls[0] in the submitted sequence.
type Chunk struct {
	Start int
	Calls []Call
}

// Size returns the number of calls in the chunk.
func (c Chunk) Size() int {
	return len(c.Calls)
}

// Empty returns true if the chunk has no calls.
func (c Chunk) Empty() bool {
	return len(c.Calls) == 0
}

// End returns the index just past the last call of the chunk.
func (c Chunk) End() int {
	return c.Start + len(c.Calls)
}

// Wire returns the request body payload for the chunk, handlers stripped.
func (c Chunk) Wire() []any {
	out := make([]any, len(c.Calls))
	for i, call := range c.Calls {
		out[i] = call.Wire()
	}
	return out
}
