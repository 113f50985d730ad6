// Package logger provides the slog handler used by the server and CLI.
//
// Each record is one line:
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, group.key="two words"
//
// LevelTrace sits below debug and carries per-stage pipeline timings.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace is more verbose than slog.LevelDebug.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Aliases so callers need only this package for level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps trace, debug, info, warn and error (any case) to a level.
// Anything else yields LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelLabel(l slog.Level) string {
	if l < LevelDebug {
		return "TRACE"
	}
	return l.String()
}

// Handler writes records as single lines. Attributes bound with WithAttrs are
// rendered once, when bound, and reused for every record.
type Handler struct {
	out   *output
	level slog.Leveler
	bound string
	group string
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewHandler creates a Handler writing to w and dropping records below level.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{out: &output{w: w}, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	b.WriteString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString(" [")
	b.WriteString(levelLabel(r.Level))
	b.WriteString("] ")
	b.WriteString(r.Message)

	var kv strings.Builder
	kv.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&kv, h.group, a)
		return true
	})
	if kv.Len() > 0 {
		b.WriteString(" | ")
		b.WriteString(kv.String())
	}
	b.WriteByte('\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.bound)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	h2 := *h
	h2.bound = b.String()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

// appendAttr writes a as prefix+key=value, flattening groups into dotted
// keys. Empty attributes are skipped as slog requires.
func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}
	if b.Len() > 0 {
		b.WriteString(", ")
	}
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(quote(a.Value.String()))
}

// quote wraps s in quotes when it would otherwise be ambiguous in a line.
func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " ,=|\"\n\t") {
		return strconv.Quote(s)
	}
	return s
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to a size-rotated file at path, or to stderr
// when path is empty. Close the returned io.Closer on shutdown.
func New(path string, level slog.Level, maxSizeMB int) (*slog.Logger, io.Closer) {
	if path == "" {
		return slog.New(NewHandler(os.Stderr, level)), nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}
	return slog.New(NewHandler(lj, level)), lj
}

// Trace logs at LevelTrace.
func Trace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}
