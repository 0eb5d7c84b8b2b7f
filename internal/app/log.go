package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LogFileName is the log file inside the configured log directory.
const LogFileName = "dlmon.log"

// cycleKey is the attribute promoted into the third column.
const cycleKey = "cycle"

// dlmonHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<cycleID>\t<message>\t<key=value ...>
//
// A record carrying a "cycle" attribute shows that ID in the third column;
// records outside a cycle show the session ID of the process instead.
type dlmonHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	sessionID string
	attrs     []slog.Attr
}

func (h *dlmonHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.level != nil {
		threshold = h.level.Level()
	}
	return level >= threshold
}

func (h *dlmonHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	id := h.sessionID

	var rest []slog.Attr
	collect := func(a slog.Attr) {
		if a.Key == cycleKey {
			id = a.Value.String()
			return
		}
		rest = append(rest, a)
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	line := fmt.Sprintf("%s\t%s\t%s\t%s", ts, r.Level.String(), id, r.Message)
	for _, a := range rest {
		line += fmt.Sprintf("\t%s=%v", a.Key, a.Value)
	}

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *dlmonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dlmonHandler{
		mu:        h.mu,
		w:         h.w,
		level:     h.level,
		sessionID: h.sessionID,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *dlmonHandler) WithGroup(string) slog.Handler { return h }

// parseSlogLevel maps a validated config level name to a slog level.
func parseSlogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger creates a structured logger that writes to logDir/dlmon.log and to
// console. It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir, sessionID, level string, console io.Writer) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if console != nil {
		w = io.MultiWriter(f, console)
	}
	handler := &dlmonHandler{
		mu:        &sync.Mutex{},
		w:         w,
		level:     parseSlogLevel(level),
		sessionID: sessionID,
	}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the monitor.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
