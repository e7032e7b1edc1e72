package logger

import (
	"context"
	"log/slog"
	"os"
)

type ContextKey string

const (
	// Business context keys for request-scoped observability.
	RequestIDKey   ContextKey = "ems.request.id"
	QueryIntentKey ContextKey = "ems.query.intent"
	StageKey       ContextKey = "ems.retrieval.stage"
	AgencyKey      ContextKey = "ems.agency"
)

// ContextLogger provides context-aware logging with request business context
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger creates a new context-aware logger
func NewContextLogger(serviceName string) *ContextLogger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)

	return &ContextLogger{
		logger:      slog.New(handler),
		serviceName: serviceName,
	}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		fields = append(fields, string(RequestIDKey), requestID)
	}
	if intent := ctx.Value(QueryIntentKey); intent != nil {
		fields = append(fields, string(QueryIntentKey), intent)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}
	if agency := ctx.Value(AgencyKey); agency != nil {
		fields = append(fields, string(AgencyKey), agency)
	}

	if len(fields) > 0 {
		return logger.With(fields...)
	}
	return logger
}
