package audit

import "context"

// Store defines the interface for persisting change events.
type Store interface {
	SaveChange(ctx context.Context, event *ChangeEvent) error
}
