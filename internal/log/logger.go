package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Options struct {
	Level string
	// Output receives log lines when File is empty.
	Output io.Writer
	RotationConfig
}

// New builds the process logger: JSON lines, redacted, optionally written to
// a rotating file. The returned closer releases the file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    io.Writer = io.Discard
		closer io.Closer = nopCloser{}
	)
	switch {
	case opts.File != "":
		writer, err := NewRotatingWriter(opts.RotationConfig)
		if err != nil {
			return nil, nil, err
		}
		out, closer = writer, writer
	case opts.Output != nil:
		out = opts.Output
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(handler)), closer, nil
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
