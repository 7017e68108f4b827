package observability

import (
	"context"
	"fmt"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a structured log field.
type Field = zap.Field

// NewLogger builds a zap logger. Format "console" selects the development
// encoder, anything else produces JSON.
func NewLogger(level, format string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// RequestFields returns the log fields derived from a request context
func RequestFields(ctx context.Context) []Field {
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		return []Field{zap.String("request_id", reqID)}
	}
	return nil
}

// WithRequest returns a logger annotated with the request ID from ctx
func WithRequest(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if fields := RequestFields(ctx); len(fields) > 0 {
		return logger.With(fields...)
	}
	return logger
}
