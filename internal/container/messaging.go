package container

import (
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/samber/do"
	"github.com/serroba/associates-api/internal/audit"
	auditstore "github.com/serroba/associates-api/internal/audit/store"
	"github.com/serroba/associates-api/internal/messaging"
	"go.uber.org/zap"
)

const auditConsumerGroup = "associates-audit"

// PublisherGroupPackage provides the change event publisher. Publishing is a
// no-op when events are disabled.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		rds := do.MustInvoke[*Redis](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     rds.Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[audit.ChangeEvent], error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.Events {
			return messaging.NoopPublish[audit.ChangeEvent](), nil
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return audit.NewPublishFunc(group.Publisher()), nil
	})
}

// ConsumerGroupPackage provides the audit consumer group. Events are stored
// in PostgreSQL when a database URL is configured, otherwise only logged.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (audit.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			return auditstore.NewNoop(logger), nil
		}

		s := auditstore.NewPostgres(do.MustInvoke[*Postgres](i).Pool)

		ctx, cancel := contextWithConnectTimeout()
		defer cancel()

		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}

		return s, nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		rds := do.MustInvoke[*Redis](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        rds.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: auditConsumerGroup,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(audit.NewConsumer(subscriber, do.MustInvoke[audit.Store](i), logger))

		return group, nil
	})
}
