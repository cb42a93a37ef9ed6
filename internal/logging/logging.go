// Package logging provides structured JSON logging with sanitization.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// sensitiveKeys are keys that should be sanitized in logs.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"credential",
	"passphrase",
	"connect_string",
}

// connectLine matches the password part of user/password in a connect
// command or a sqlplus command line.
var connectLine = regexp.MustCompile(`(?i)(\b(?:conn(?:ect)?|sqlplus)\s+(?:-\S+\s+)*[^\s/@]+/)("[^"]*"|[^\s@]+)`)

// SanitizingHandler wraps a slog.Handler to sanitize sensitive data.
type SanitizingHandler struct {
	handler  slog.Handler
	sanitize bool
}

// NewSanitizingHandler creates a new sanitizing handler.
func NewSanitizingHandler(handler slog.Handler, sanitize bool) *SanitizingHandler {
	return &SanitizingHandler{
		handler:  handler,
		sanitize: sanitize,
	}
}

// Enabled implements slog.Handler.
func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.sanitize {
		return h.handler.Handle(ctx, r)
	}

	newRecord := slog.NewRecord(r.Time, r.Level, RedactConnect(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, newRecord)
}

// WithAttrs implements slog.Handler.
func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.sanitize {
		sanitized := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			sanitized[i] = h.sanitizeAttr(a)
		}
		attrs = sanitized
	}
	return &SanitizingHandler{
		handler:  h.handler.WithAttrs(attrs),
		sanitize: h.sanitize,
	}
}

// WithGroup implements slog.Handler.
func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{
		handler:  h.handler.WithGroup(name),
		sanitize: h.sanitize,
	}
}

// sanitizeAttr redacts attributes with sensitive keys and connect passwords
// inside string values.
func (h *SanitizingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			sanitized[i] = h.sanitizeAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	case slog.KindString:
		return slog.String(a.Key, RedactConnect(a.Value.String()))
	}

	return a
}

// RedactConnect replaces the password in "connect user/password@svc" style
// text with asterisks.
func RedactConnect(s string) string {
	if !strings.Contains(s, "/") {
		return s
	}
	return connectLine.ReplaceAllString(s, "${1}****")
}

// Truncate shortens s to at most maxLen bytes for logging.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 0 {
		maxLen = 0
	}
	return s[:maxLen] + "..."
}

// ParseLevel maps a level name to a slog level; unknown names mean warn.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// DefaultPath returns ~/.cache/gqlplus/gqlplus.log.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gqlplus", "gqlplus.log")
}

// New builds a sanitizing JSON logger writing to w.
func New(w io.Writer, level string, sanitize bool) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(NewSanitizingHandler(jsonHandler, sanitize))
}

// Setup initializes the global logger. The terminal belongs to the
// interactive session, so records go to the file at path (DefaultPath when
// empty). The returned closer releases the file.
func Setup(level string, sanitize bool, path string) (io.Closer, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		slog.SetDefault(New(io.Discard, level, sanitize))
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		slog.SetDefault(New(io.Discard, level, sanitize))
		return io.NopCloser(nil), fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		slog.SetDefault(New(io.Discard, level, sanitize))
		return io.NopCloser(nil), fmt.Errorf("open log file: %w", err)
	}

	slog.SetDefault(New(f, level, sanitize))
	return f, nil
}
