// Package logger provides the structured, context-aware logger used across modules.
package logger

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Level aliases slog levels so callers don't import log/slog.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// TraceIDFn extracts a trace id from a context. An empty result omits the field.
type TraceIDFn func(ctx context.Context) string

// LoggerInterface is the logging port handed to services and adapters.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) LoggerInterface
}

// Logger writes JSON records through slog.
type Logger struct {
	handler slog.Handler
	traceID TraceIDFn
}

var _ LoggerInterface = (*Logger)(nil)

// New creates a Logger writing JSON to w. When traceIDFn is nil the
// OpenTelemetry span in the context supplies the trace id.
func New(w io.Writer, level Level, service string, traceIDFn TraceIDFn) *Logger {
	if traceIDFn == nil {
		traceIDFn = SpanTraceID
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return &Logger{
		handler: h.WithAttrs([]slog.Attr{slog.String("service", service)}),
		traceID: traceIDFn,
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SpanTraceID returns the trace id of the span carried by ctx.
func SpanTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelDebug, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelWarn, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelError, msg, args...)
}

// With returns a logger that always includes the given key/value pairs.
func (l *Logger) With(args ...any) LoggerInterface {
	return &Logger{
		handler: slog.New(l.handler).With(args...).Handler(),
		traceID: l.traceID,
	}
}

// Slog exposes the underlying handler as a *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(l.handler)
}

func (l *Logger) log(ctx context.Context, level Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}
	if id := l.traceID(ctx); id != "" {
		args = append(args, "trace_id", id)
	}
	slog.New(l.handler).Log(ctx, level, msg, args...)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, LevelError+4, "nop", func(context.Context) string { return "" })
}
