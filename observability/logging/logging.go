package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Option adjusts where Setup sends the structured log stream.
type Option func(*setupOptions)

type setupOptions struct {
	sinks []io.Writer
}

// WithRotatingFile mirrors the log stream into a size-rotated file. Zero
// retention values fall back to lumberjack's defaults.
func WithRotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(o *setupOptions) {
		if strings.TrimSpace(path) == "" {
			return
		}
		o.sinks = append(o.sinks, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		})
	}
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string, opts ...Option) *slog.Logger {
	options := &setupOptions{}
	for _, opt := range opts {
		opt(options)
	}
	var out io.Writer = os.Stdout
	if len(options.sinks) > 0 {
		out = io.MultiWriter(append([]io.Writer{os.Stdout}, options.sinks...)...)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
