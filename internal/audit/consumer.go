package audit

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/associates-api/internal/messaging"
	"go.uber.org/zap"
)

// MessageID lets the publisher use the event ID as message UUID.
func (e *ChangeEvent) MessageID() string {
	return e.ID
}

// AssignMessageID sets the event ID from the message UUID when the payload has none.
func (e *ChangeEvent) AssignMessageID(id string) {
	if e.ID == "" {
		e.ID = id
	}
}

var (
	errMissingID   = errors.New("missing event id")
	errMissingName = errors.New("missing name")
)

// Validate rejects events the audit trail cannot record.
func (e *ChangeEvent) Validate() error {
	if e.ID == "" {
		return errMissingID
	}

	if e.Name == "" {
		return errMissingName
	}

	switch e.Operation {
	case OperationAdd, OperationUpdate, OperationDelete:
		return nil
	default:
		return fmt.Errorf("unknown operation %q", e.Operation)
	}
}

// NewConsumer subscribes to TopicChanged and persists every event to store.
func NewConsumer(subscriber message.Subscriber, store Store, logger *zap.Logger) *messaging.Consumer[ChangeEvent] {
	return messaging.NewConsumer(subscriber, TopicChanged, store.SaveChange, logger)
}

// NewPublishFunc returns a function that publishes change events to TopicChanged.
func NewPublishFunc(publisher message.Publisher) messaging.Publish[ChangeEvent] {
	return messaging.NewPublishFunc[ChangeEvent](publisher, TopicChanged)
}
