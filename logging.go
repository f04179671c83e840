package adsclient

import (
	"log/slog"
	"os"
)

// Logger defines the interface for structured logging in adsclient.
// It follows the standard slog.Logger interface for compatibility.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// slogAdapter adapts slog.Logger to our Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s *slogAdapter) Debug(msg string, args ...any) {
	s.logger.Debug(msg, args...)
}

func (s *slogAdapter) Info(msg string, args ...any) {
	s.logger.Info(msg, args...)
}

func (s *slogAdapter) Warn(msg string, args ...any) {
	s.logger.Warn(msg, args...)
}

func (s *slogAdapter) Error(msg string, args ...any) {
	s.logger.Error(msg, args...)
}

func (s *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{logger: s.logger.With(args...)}
}

// noopLogger implements Logger with no-op operations for minimal overhead.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, args ...any) {}
func (n *noopLogger) Info(msg string, args ...any)  {}
func (n *noopLogger) Warn(msg string, args ...any)  {}
func (n *noopLogger) Error(msg string, args ...any) {}
func (n *noopLogger) With(args ...any) Logger       { return n }

// consoleWarnLogger forwards warnings and errors to stderr and drops the
// rest. It is the default so misconfigurations stay visible; set
// HideConsoleWarnings or a real logger to silence it.
type consoleWarnLogger struct {
	logger *slog.Logger
}

func (c *consoleWarnLogger) Debug(msg string, args ...any) {}
func (c *consoleWarnLogger) Info(msg string, args ...any)  {}
func (c *consoleWarnLogger) Warn(msg string, args ...any)  { c.logger.Warn(msg, args...) }
func (c *consoleWarnLogger) Error(msg string, args ...any) { c.logger.Error(msg, args...) }
func (c *consoleWarnLogger) With(args ...any) Logger {
	return &consoleWarnLogger{logger: c.logger.With(args...)}
}

// DefaultLogger is a no-op logger to minimize overhead when logging is not
// configured.
var DefaultLogger Logger = &noopLogger{}

// NewSlogLogger creates a Logger from a slog.Logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return DefaultLogger
	}
	return &slogAdapter{logger: logger}
}

// NewDefaultLogger creates a basic JSON logger writing to stderr.
func NewDefaultLogger() Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &slogAdapter{logger: slog.New(handler)}
}

func newConsoleWarnLogger() Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	return &consoleWarnLogger{logger: slog.New(handler)}
}

// WithLogger sets the logger for the client.
func WithLogger(logger Logger) Option {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}
