// Package log exposes the structured logging abstraction used by pryvlink.
//
// Any logging library can be plugged in by implementing [Logger]:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
//
// A zerolog-backed implementation is provided:
//
//	logger := log.NewZerolog(zerolog.New(os.Stderr))
//
// and [Discard] for tests and silent embedding.
package log
