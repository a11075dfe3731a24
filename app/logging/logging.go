package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewHandler builds the handler for the given format. Text output goes
// through charmbracelet/log, JSON through the standard slog handler.
func NewHandler(w io.Writer, format string, debug bool) (slog.Handler, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case FormatText, "":
		logger := log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Level:           log.Level(level),
		})
		return logger, nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

// Setup installs the handler as the process-wide slog default.
func Setup(w io.Writer, format string, debug bool) error {
	handler, err := NewHandler(w, format, debug)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
