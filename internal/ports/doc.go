// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside
// world. They define what the application needs from external systems
// without specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [Transport]: One request/response exchange with the service
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [CursorRepository]: Persists and loads the incremental sync cursor
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (net/http, file system, zerolog).
package ports
