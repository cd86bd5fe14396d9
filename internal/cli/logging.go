package cli

import (
	"io"
	"log/slog"
	"os"
)

// newLogger builds the process logger. stdio mode must keep stdout clean for
// protocol traffic, so it logs to logFile instead (or nowhere if that fails).
func newLogger(level slog.Level, stdio bool, logFile string, stderr io.Writer) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: level}
	if !stdio {
		return slog.New(slog.NewTextHandler(stderr, opts)), func() {}
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	return slog.New(slog.NewTextHandler(f, opts)), func() { _ = f.Close() }
}
