package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/dshills/runstorm/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the diagnostic logger described by cfg. Logs go to
// cfg.File, or nowhere when it is empty; they never share the terminal
// with program output. The returned closer releases the file.
func NewLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nopCloser{}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("app", "runstorm"), f, nil
}
