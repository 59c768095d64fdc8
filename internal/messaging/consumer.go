package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler processes a single event. A returned error nacks the message and
// the broker redelivers it, so handlers must accept the same event twice.
type Handler[T any] func(ctx context.Context, event *T) error

// Validator is implemented by events that can check their own payload.
type Validator interface {
	Validate() error
}

// MessageIDAssigner is implemented by events that take the message UUID as
// their ID when the payload carries none.
type MessageIDAssigner interface {
	AssignMessageID(id string)
}

// Consumer subscribes to a topic and feeds decoded events to a handler.
//
// Messages are settled by outcome:
//   - undecodable or invalid payloads are logged and acked, since a
//     redelivery carries the same bytes
//   - handler errors nack the message for redelivery
//   - everything else is acked
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a consumer of T events on topic.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger.With(zap.String("topic", topic)),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until ctx is
// cancelled or Shutdown is called.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	go c.run(ctx, msgs)

	return nil
}

func (c *Consumer[T]) run(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.settle(ctx, msg)
		}
	}
}

func (c *Consumer[T]) settle(ctx context.Context, msg *message.Message) {
	logger := c.logger.With(zap.String("message_id", msg.UUID))

	event, err := c.decode(msg)
	if err != nil {
		logger.Error("dropping event", zap.Int("payload_bytes", len(msg.Payload)), zap.Error(err))
		msg.Ack()

		return
	}

	if err := c.handler(ctx, event); err != nil {
		logger.Warn("event handling failed, requesting redelivery", zap.Error(err))
		msg.Nack()

		return
	}

	msg.Ack()
	logger.Debug("processed event")
}

// decode unmarshals the payload, fills a missing ID from the message UUID
// and validates the result.
func (c *Consumer[T]) decode(msg *message.Message) (*T, error) {
	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", c.topic, err)
	}

	if a, ok := any(&event).(MessageIDAssigner); ok {
		a.AssignMessageID(msg.UUID)
	}

	if v, ok := any(&event).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s event: %w", c.topic, err)
		}
	}

	return &event, nil
}

// Shutdown stops the consumer and waits for the message in flight, if any.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	<-c.done

	return nil
}
