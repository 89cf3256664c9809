package testutil

import (
	"log/slog"

	"github.com/rankfuse/rankfuse/internal/log"
)

// DiscardLogger returns a logger whose output goes nowhere. The integration
// tests inject it into the store and engine so container startup noise is
// all that reaches the terminal.
func DiscardLogger() log.Logger {
	return slog.New(slog.DiscardHandler)
}
