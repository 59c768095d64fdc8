package store

import (
	"context"

	"github.com/serroba/associates-api/internal/audit"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of audit.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op audit store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveChange(_ context.Context, event *audit.ChangeEvent) error {
	n.logger.Info("change event received",
		zap.String("id", event.ID),
		zap.String("operation", string(event.Operation)),
		zap.String("name", event.Name),
		zap.Int64("likeCount", event.LikeCount),
		zap.String("request_id", event.RequestID),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}

var _ audit.Store = (*Noop)(nil)
