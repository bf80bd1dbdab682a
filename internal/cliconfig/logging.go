package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	logAdapter "github.com/bft-labs/pryvlink/internal/adapters/log"
)

// Logger returns the CLI logger writing to stderr at the given level.
func Logger(level string) zerolog.Logger {
	return logAdapter.NewConsoleLogger(os.Stderr, logAdapter.ParseLevel(level))
}
