// Package notify provides a zap-backed NotificationSink. Events are
// best-effort: the sink never fails the caller.
package notify

import (
	"go.uber.org/zap"

	"github.com/autodca/autodca-backend/internal/domain"
)

// LogSink emits notification events to the structured log
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new log-backed notification sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit writes the event as a structured log entry
func (s *LogSink) Emit(event domain.Event) {
	switch event.Kind {
	case domain.EventCycleExecuted:
		s.logger.Info("cycle executed",
			zap.String("vault_id", event.VaultID.String()),
			zap.Uint32("cycle", event.Cycle),
			zap.String("amount_in", event.AmountIn.String()),
			zap.String("amount_out", event.AmountOut.String()),
			zap.Time("timestamp", event.Timestamp),
		)
	case domain.EventVaultStatusChanged:
		s.logger.Info("vault status changed",
			zap.String("vault_id", event.VaultID.String()),
			zap.String("old_status", string(event.OldStatus)),
			zap.String("new_status", string(event.NewStatus)),
			zap.Time("timestamp", event.Timestamp),
		)
	default:
		s.logger.Warn("unknown event kind", zap.String("kind", string(event.Kind)))
	}
}

var _ domain.NotificationSink = (*LogSink)(nil)
