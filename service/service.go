package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"ticketing/booking"
	"ticketing/checkin"
	"ticketing/db"
	"ticketing/gateway"
	httpserver "ticketing/http"
	"ticketing/pkg/log"
	"ticketing/pubsub"
	"ticketing/pubsub/bus"
	"ticketing/pubsub/command"
	"ticketing/pubsub/event"
	"ticketing/pubsub/outbox"
)

func init() {
	log.Init(logrus.InfoLevel)
}

type Service struct {
	db              *sqlx.DB
	watermillRouter *message.Router
	outboxForwarder *forwarder.Forwarder
	httpServer      *httpserver.Server
}

func New(
	addr string,
	dbConn *sqlx.DB,
	redisClient *redis.Client,
	notificationService command.NotificationService,
	paymentService command.PaymentService,
) Service {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	eventBus, err := bus.NewEventBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create event bus: %w", err))
	}

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create command bus: %w", err))
	}

	inventoryRepo := db.NewInventoryRepository(dbConn)
	bookingsRepo := db.NewBookingsRepository(dbConn, inventoryRepo, watermillLogger)
	ticketsRepo := db.NewTicketsRepository(dbConn)
	checkInsRepo := db.NewCheckInsRepository(dbConn)

	checkInService := checkin.NewService(ticketsRepo, bookingsRepo, checkInsRepo, eventBus)
	bookingService := booking.NewService(bookingsRepo, inventoryRepo, checkInService, eventBus, commandBus)

	eventsHandler := event.NewHandler(bookingsRepo, checkInService)
	commandsHandler := command.NewHandler(notificationService, paymentService)

	eventProcessorConfig := event.NewProcessorConfig(redisClient, watermillLogger)
	commandProcessorConfig := command.NewProcessorConfig(redisClient, watermillLogger)

	watermillRouter, err := pubsub.NewWatermillRouter(
		eventProcessorConfig,
		eventsHandler,
		commandProcessorConfig,
		commandsHandler,
		watermillLogger,
	)
	if err != nil {
		panic(fmt.Errorf("failed to create watermill router: %w", err))
	}

	postgresSubscriber, err := outbox.NewPostgresSubscriber(dbConn, watermillLogger)
	if err != nil {
		panic(fmt.Errorf("failed to create outbox subscriber: %w", err))
	}

	outboxForwarder, err := outbox.NewForwarder(postgresSubscriber, redisPublisher, watermillLogger)
	if err != nil {
		panic(fmt.Errorf("failed to create outbox forwarder: %w", err))
	}

	httpServer := httpserver.NewServer(
		addr,
		bookingService,
		checkInService,
		inventoryRepo,
	)

	return Service{
		db:              dbConn,
		watermillRouter: watermillRouter,
		outboxForwarder: outboxForwarder,
		httpServer:      httpServer,
	}
}

// NewGateways builds the production collaborator clients.
func NewGateways(notificationAddr, paymentAddr string) (gateway.NotificationClient, gateway.PaymentClient) {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return gateway.NewNotificationClient(httpClient, notificationAddr),
		gateway.NewPaymentClient(httpClient, paymentAddr)
}

func (s Service) Run(ctx context.Context) error {
	if err := db.InitializeDatabaseSchema(s.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	if err := outbox.InitializeForwarderSchema(s.db, log.NewWatermill(log.FromContext(ctx))); err != nil {
		return fmt.Errorf("failed to initialize outbox schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		return s.outboxForwarder.Run(ctx)
	})

	g.Go(func() error {
		// HTTP starts only once the router is ready, so the service is not
		// reported healthy before handlers can consume
		<-s.watermillRouter.Running()

		return s.httpServer.Run(ctx)
	})

	return g.Wait()
}
