// Package logging configures slog with the unified line format shared by
// every LifeHub process:
//
//	2026-01-06T14:05:52Z [source] LEVEL message key=value...
//
// Call Init once at startup, then use slog directly everywhere:
//
//	logging.Init("lifehub")
//	slog.Info("Worker started", "maxJobs", 20)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LineHandler is a slog.Handler emitting the unified single-line format.
type LineHandler struct {
	source string
	level  slog.Level
	out    io.Writer
	attrs  []slog.Attr
}

// NewHandler creates a handler writing to out at the given level.
func NewHandler(source string, out io.Writer, level slog.Level) *LineHandler {
	return &LineHandler{source: source, out: out, level: level}
}

// Enabled reports whether records at the given level are logged.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle renders one record as a single line.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder

	line.WriteString(r.Time.UTC().Format(time.RFC3339))
	line.WriteString(" [")
	line.WriteString(h.source)
	line.WriteString("] ")
	line.WriteString(r.Level.String())
	line.WriteString(" ")
	line.WriteString(r.Message)

	for _, attr := range h.attrs {
		writeAttr(&line, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&line, attr)
		return true
	})
	line.WriteString("\n")

	_, err := io.WriteString(h.out, line.String())
	return err
}

// WithAttrs returns a handler carrying the extra attributes.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LineHandler{source: h.source, out: h.out, level: h.level, attrs: merged}
}

// WithGroup returns the handler unchanged; the line format has no nesting.
func (h *LineHandler) WithGroup(string) slog.Handler {
	return h
}

func writeAttr(line *strings.Builder, attr slog.Attr) {
	line.WriteString(" ")
	line.WriteString(attr.Key)
	line.WriteString("=")
	fmt.Fprintf(line, "%v", attr.Value.Any())
}

// Init installs the default slog logger, reading the level from LOG_LEVEL.
func Init(source string) {
	InitWithWriter(source, os.Stdout)
}

// InitWithWriter installs the default logger with a custom writer, used by
// tests.
func InitWithWriter(source string, out io.Writer) {
	slog.SetDefault(NewLogger(source, out))
}

// NewLogger creates a logger at the level selected by LOG_LEVEL.
func NewLogger(source string, out io.Writer) *slog.Logger {
	return slog.New(NewHandler(source, out, LevelFromEnv()))
}

// LevelFromEnv maps LOG_LEVEL onto a slog level, defaulting to info.
func LevelFromEnv() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
