// Package outbox stores messages in Postgres inside the caller's
// transaction and forwards them to the Redis stream transport, so an event
// is published iff the transaction that caused it committed.
package outbox

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
)

const forwarderTopic = "events_to_forward"

// NewPublisherForTx returns a publisher that writes into the outbox table
// within tx. Messages are wrapped in a forwarder envelope carrying their
// destination topic.
func NewPublisherForTx(tx *sqlx.Tx, logger watermill.LoggerAdapter) (message.Publisher, error) {
	var publisher message.Publisher

	publisher, err := watermillSQL.NewPublisher(
		tx,
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	return forwarder.NewPublisher(publisher, forwarder.PublisherConfig{
		ForwarderTopic: forwarderTopic,
	}), nil
}

func NewPostgresSubscriber(db *sqlx.DB, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	subscriber, err := watermillSQL.NewSubscriber(
		db,
		watermillSQL.SubscriberConfig{
			SchemaAdapter:    watermillSQL.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox subscriber: %w", err)
	}
	return subscriber, nil
}

// InitializeForwarderSchema creates the outbox tables up front, so
// transactional publishes work before the forwarder has ever run.
func InitializeForwarderSchema(db *sqlx.DB, logger watermill.LoggerAdapter) error {
	subscriber, err := NewPostgresSubscriber(db, logger)
	if err != nil {
		return err
	}

	sqlSubscriber, ok := subscriber.(*watermillSQL.Subscriber)
	if !ok {
		return fmt.Errorf("unexpected outbox subscriber type %T", subscriber)
	}

	if err := sqlSubscriber.SubscribeInitialize(forwarderTopic); err != nil {
		return fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	return sqlSubscriber.Close()
}

// NewForwarder moves committed outbox messages to their real topics on the
// Redis transport. Run it alongside the router.
func NewForwarder(
	postgresSubscriber message.Subscriber,
	redisPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*forwarder.Forwarder, error) {
	fwd, err := forwarder.NewForwarder(postgresSubscriber, redisPublisher, logger, forwarder.Config{
		ForwarderTopic: forwarderTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create outbox forwarder: %w", err)
	}
	return fwd, nil
}
