// Package pryvlink is a client for Pryv-style data-collection APIs.
//
// A [Connection] is bound to one API endpoint and token. It dispatches
// ordered batches of method calls, streams large event queries without
// buffering them, uploads attachments and high-frequency series points, and
// keeps an estimate of the server clock.
//
// # Basic Usage
//
//	conn, err := pryvlink.New(pryvlink.Config{
//	    APIEndpoint: "https://ck6bwmcar00041ep87c8ujf90@alice.pryv.me/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := conn.API(ctx, []pryvlink.Call{
//	    {Method: "streams.get", Params: map[string]any{}},
//	    {Method: "events.get", Params: map[string]any{"limit": 10}},
//	}, nil)
//
// # Batches
//
// [Connection.API] splits long call sequences into chunks of
// Config.ChunkSize calls, sends them one after another and returns one
// result per call in submission order. A per-call HandleResult callback runs
// as soon as the call's chunk is answered, before the next chunk is sent.
// Errors the service reports for individual calls are ordinary results; see
// [Result.Err].
//
// # Streaming
//
// [Connection.GetEventsStreamed] hands each event of an events query to a
// callback while the response is still arriving, so memory stays bounded
// regardless of the result size.
//
// # Following
//
// [Connection.Follow] polls for events modified since the last pass and
// persists its cursor under Config.StateDir, so a restarted process resumes
// where it stopped.
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for defaults) and
// pass it with [WithEventHandler] to observe auth state changes and sync
// passes.
package pryvlink
