package voicelive

import (
	"fmt"
	"log/slog"
)

// Logger is the observability sink for protocol-level diagnostics. Behavior
// is identical whether or not a sink is attached; NopLogger discards
// everything.
type Logger interface {
	ErrorPrintf(format string, args ...any)
	WarnPrintf(format string, args ...any)
	InfoPrintf(format string, args ...any)
	DebugPrintf(format string, args ...any)
}

type defaultLogger struct{}

// DefaultLogger returns a logger backed by slog's default handler.
func DefaultLogger() Logger {
	return defaultLogger{}
}

func (defaultLogger) ErrorPrintf(format string, args ...any) {
	slog.Error("voicelive: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) WarnPrintf(format string, args ...any) {
	slog.Warn("voicelive: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) InfoPrintf(format string, args ...any) {
	slog.Info("voicelive: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) DebugPrintf(format string, args ...any) {
	slog.Debug("voicelive: " + fmt.Sprintf(format, args...))
}

type nopLogger struct{}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) ErrorPrintf(string, ...any) {}
func (nopLogger) WarnPrintf(string, ...any)  {}
func (nopLogger) InfoPrintf(string, ...any)  {}
func (nopLogger) DebugPrintf(string, ...any) {}

// SlogLogger creates a Logger from a slog.Logger.
func SlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) ErrorPrintf(format string, args ...any) {
	s.l.Error("voicelive: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) WarnPrintf(format string, args ...any) {
	s.l.Warn("voicelive: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) InfoPrintf(format string, args ...any) {
	s.l.Info("voicelive: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) DebugPrintf(format string, args ...any) {
	s.l.Debug("voicelive: " + fmt.Sprintf(format, args...))
}
