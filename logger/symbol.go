package logger

import (
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These log with the glyph as a structured field, not in the message, so logs
// stay queryable by lifecycle step.
//
//	log := logger.WithSymbol(base, sym.Claim)
//	log.Infow("Claimed jobs", "queue", q, "count", n)

// WithSymbol returns parent (or the global Logger when parent is nil) with
// the given symbol attached as a field.
func WithSymbol(parent *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	if parent == nil {
		parent = Logger
	}
	return parent.With(FieldSymbol, symbol)
}
