// Package domain contains the core entities and value objects for pryvlink.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (HTTP, file system, logging) and contains only
// the data shapes exchanged with the remote service plus their invariants.
//
// # Entities
//
//   - [Call]: A named remote method call with parameters and an optional local result handler
//   - [Chunk]: A contiguous, order-preserving slice of calls sent in one exchange
//   - [Result]: The per-call payload returned by the service, or an error descriptor
//   - [Event]: One item decoded from a streamed events query
//   - [StreamSummary]: Trailer data available once a stream is fully consumed
//   - [Cursor]: Persistent position of an incremental sync
//   - [AuthState]: Authorization state of a connection
//
// # Design Principles
//
// Domain values are:
//   - Immutable after construction (calls and results are never rewritten)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
