// Package observability installs the process-wide logging setup.
package observability

import (
	"fmt"
	"log/slog"
	"os"
)

// Instrument configures the default slog handler for the given level and
// format ("text" or "json"). Called once at startup, before any component
// logs.
func Instrument(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
