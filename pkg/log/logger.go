package log

import (
	"io"

	"github.com/rs/zerolog"

	logAdapter "github.com/bft-labs/pryvlink/internal/adapters/log"
	"github.com/bft-labs/pryvlink/internal/ports"
)

// Logger provides structured logging capabilities.
type Logger = ports.Logger

// Field represents a key-value pair for structured logging.
type Field = ports.Field

// Field constructors.
var (
	String   = ports.String
	Int      = ports.Int
	Int64    = ports.Int64
	Float64  = ports.Float64
	Bool     = ports.Bool
	Duration = ports.Duration
	Err      = ports.Err
	Any      = ports.Any
)

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(logger zerolog.Logger) Logger {
	return logAdapter.NewZerologAdapterWithLogger(logger)
}

// NewConsole returns a human-readable logger writing to w at the named level
// ("debug", "info", "warn", "error").
func NewConsole(w io.Writer, level string) Logger {
	return logAdapter.NewZerologAdapterWithLogger(logAdapter.NewConsoleLogger(w, logAdapter.ParseLevel(level)))
}

// Discard returns a logger that drops every message.
func Discard() Logger {
	return logAdapter.NewNoopLogger()
}
