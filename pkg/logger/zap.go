package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxecommerce/storefront/core"
)

// Config selects level, encoding and destination.
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json or console
	Output io.Writer // defaults to os.Stderr
}

// ZapLogger implements core.Logger and core.ComponentLogger.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

var _ core.ComponentLogger = (*ZapLogger)(nil)

// ParseLevel maps a level name onto a zap level. Unknown names are an error.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q: %w", level, core.ErrInvalidConfiguration)
}

// New builds a ZapLogger from cfg.
func New(cfg Config) (*ZapLogger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q: %w", cfg.Format, core.ErrInvalidConfiguration)
	}

	zcore := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	return NewFromCore(zcore), nil
}

// NewFromCore wraps an existing zap core; tests pass an observer core.
func NewFromCore(c zapcore.Core) *ZapLogger {
	base := zap.New(c)
	return &ZapLogger{base: base, sugar: base.Sugar()}
}

// NewFromConfig builds a logger from the storefront logging configuration.
func NewFromConfig(cfg core.LoggingConfig) (*ZapLogger, error) {
	return New(Config{Level: cfg.Level, Format: cfg.Format})
}

// WithComponent returns a child logger tagged with component.
func (l *ZapLogger) WithComponent(component string) core.Logger {
	child := l.base.With(zap.String("component", component))
	return &ZapLogger{base: child, sugar: child.Sugar()}
}

// Zap exposes the underlying logger for libraries that take one.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.sugar.Debugw(msg, keyvals(fields)...)
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.sugar.Infow(msg, keyvals(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.sugar.Warnw(msg, keyvals(fields)...)
}

func (l *ZapLogger) Error(msg string, fields map[string]interface{}) {
	l.sugar.Errorw(msg, keyvals(fields)...)
}

func (l *ZapLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.sugar.Debugw(msg, keyvals(withTrace(ctx, fields))...)
}

func (l *ZapLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.sugar.Infow(msg, keyvals(withTrace(ctx, fields))...)
}

func (l *ZapLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.sugar.Warnw(msg, keyvals(withTrace(ctx, fields))...)
}

func (l *ZapLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.sugar.Errorw(msg, keyvals(withTrace(ctx, fields))...)
}

// keyvals flattens a field map into sorted key/value pairs so output order
// is stable.
func keyvals(fields map[string]interface{}) []interface{} {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}

func withTrace(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if ctx == nil {
		return fields
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return fields
	}
	merged := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged["trace_id"] = sc.TraceID().String()
	merged["span_id"] = sc.SpanID().String()
	return merged
}
