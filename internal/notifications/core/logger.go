// Package core holds the run-level plumbing shared by every entry point of
// the expiry notifier: CloudWatch run metrics, the failed-delivery queue
// publisher, and the slog adapter those components log through.
package core

import (
	"log/slog"

	"pantrynotify/internal/types"
)

// SlogLogger adapts *slog.Logger to types.Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l, or slog.Default() when l is nil.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *SlogLogger) With(args ...any) types.Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

var _ types.Logger = (*SlogLogger)(nil)
