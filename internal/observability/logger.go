// Package observability provides logging for sfbuild.
package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/symbiflow/sfbuild/internal/config"
)

// globalLogLevel is shared by every handler this package creates.
var globalLogLevel = &slog.LevelVar{}

// NewLogger creates a new slog.Logger based on the provided configuration.
// Diagnostics go to standard error; standard output is reserved for build
// progress and plan rendering.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// sensitiveFieldRedactor creates a masq redactor for sensitive field names.
// Module configurations may carry credentials in values; they must not leak
// into logs.
func sensitiveFieldRedactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("password"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("Secret"),
		masq.WithFieldName("token"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("apikey"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("credential"),
	)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided
// writer. Sensitive fields are automatically redacted.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	globalLogLevel.Set(parseLevel(cfg.Level))

	redactor := sensitiveFieldRedactor()

	opts := &slog.HandlerOptions{
		Level:     globalLogLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = redactor(groups, a)

			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return slog.LevelDebug - 4
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
