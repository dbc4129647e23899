// Package telemetry reports ledger operations to zap and Prometheus.
package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	statusError     = "error"
	statusDuplicate = "duplicate"
)

// ZapLogger writes one structured line per operation.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps logger. A nil logger discards output.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("ledger")}
}

// LogOperation implements ledger.OperationLogger.
func (zapLogger *ZapLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("user_id", entry.UserID.String()),
		zap.Duration("duration", entry.Duration),
	}
	if !entry.CurrencyKey.IsZero() {
		fields = append(fields, zap.String("currency", entry.CurrencyKey.String()))
	}
	if entry.Delta != 0 {
		fields = append(fields, zap.Int64("delta", entry.Delta.Int64()))
	}
	if entry.BadgeID != 0 {
		fields = append(fields, zap.Int64("badge_id", entry.BadgeID.Int64()))
	}
	if entry.RankOrder != 0 {
		fields = append(fields, zap.Int("rank_order", entry.RankOrder))
	}
	if !entry.IdempotencyKey.IsZero() {
		fields = append(fields, zap.String("idempotency_key", entry.IdempotencyKey.String()))
	}
	if entry.Drift != 0 {
		fields = append(fields, zap.Int64("drift", entry.Drift))
	}

	switch {
	case entry.Error != nil:
		zapLogger.logger.Error("ledger operation failed", append(fields, zap.Error(entry.Error))...)
	case entry.Drift != 0:
		zapLogger.logger.Warn("wallet projection drift repaired", fields...)
	case entry.Status == statusDuplicate:
		zapLogger.logger.Info("duplicate event ignored", fields...)
	default:
		zapLogger.logger.Info("ledger operation", fields...)
	}
}

// MultiLogger fans one operation out to several loggers.
type MultiLogger []ledger.OperationLogger

// LogOperation implements ledger.OperationLogger.
func (loggers MultiLogger) LogOperation(ctx context.Context, entry ledger.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
