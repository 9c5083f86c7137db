package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across boss.
const (
	// Identity
	FieldJobID          = "job_id"
	FieldQueue          = "queue"
	FieldSubscriptionID = "subscription_id"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldInterval   = "interval"
	FieldBackoff    = "backoff"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount     = "count"
	FieldBatchSize = "batch_size"
	FieldInFlight  = "in_flight"

	// Status
	FieldState = "state"

	// boss-specific
	FieldSymbol = "symbol" // lifecycle glyph (⇥, ✓, ✗, ⚑, ...)
)

type contextKey string

const (
	jobIDKey contextKey = "logger_job_id"
	queueKey contextKey = "logger_queue"
)

// WithJobID adds a job ID to the context for logging
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithQueue adds a queue name to the context for logging
func WithQueue(ctx context.Context, queue string) context.Context {
	return context.WithValue(ctx, queueKey, queue)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if jobID, ok := ctx.Value(jobIDKey).(string); ok && jobID != "" {
		fields = append(fields, FieldJobID, jobID)
	}
	if queue, ok := ctx.Value(queueKey).(string); ok && queue != "" {
		fields = append(fields, FieldQueue, queue)
	}

	return fields
}

// FromContext returns base (or the global Logger when base is nil) with the
// fields carried by ctx attached.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
// Example:
//
//	log := logger.ComponentLogger("metrics")
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
