package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hiddystays/internal/app/commands"
	availabilityapp "hiddystays/internal/app/handlers/availability"
	bookingapp "hiddystays/internal/app/handlers/booking"
	paymentsapp "hiddystays/internal/app/handlers/payments"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/notifications"
	appoutbox "hiddystays/internal/app/outbox"
	"hiddystays/internal/app/policies"
	"hiddystays/internal/app/queries"
	"hiddystays/internal/app/schedule"
	"hiddystays/internal/app/uow"
	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/infra/auth"
	"hiddystays/internal/infra/broker/kafka"
	"hiddystays/internal/infra/config"
	mongostore "hiddystays/internal/infra/db/mongo"
	"hiddystays/internal/infra/db/postgres"
	ginserver "hiddystays/internal/infra/http/gin"
	"hiddystays/internal/infra/notify"
	"hiddystays/internal/infra/obs"
	outboxinfra "hiddystays/internal/infra/outbox"
	"hiddystays/internal/infra/payments/stripe"
	pricinginfra "hiddystays/internal/infra/pricing"
	"hiddystays/internal/infra/ratelimit"
	"hiddystays/internal/infra/storage/memory"
	"hiddystays/internal/infra/validation"
)

type application struct {
	backendName string
	handlers    ginserver.Handlers
	checks      map[string]obs.Check
	background  map[string]func(ctx context.Context) error
	closers     []func(ctx context.Context) error

	factory     uow.UoWFactory
	putProperty func(ctx context.Context, p *properties.Property) error
}

func (a *application) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// storage is the write side picked at startup: Postgres when DATABASE_URL is
// set, otherwise the in-process store.
type storage struct {
	factory uow.UoWFactory
	outbox  appoutbox.Outbox
	// durable is drained by the outbox worker; nil when events are delivered
	// inline on flush.
	durable outboxinfra.Store
	inApp   policies.InAppWriter
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		checks:     make(map[string]obs.Check),
		background: make(map[string]func(ctx context.Context) error),
	}

	var mongoClient *mongostore.Client
	if cfg.MongoURI != "" {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		mongoClient = client
		app.checks["mongo"] = client.Ping
		app.onClose(client.Close)
	}

	mailer := buildMailer(cfg, logger)
	fanout := &notifications.Fanout{Mailer: mailer, Logger: logger}

	store, err := app.buildStorage(ctx, cfg, mongoClient, fanout, logger)
	if err != nil {
		return nil, err
	}
	fanout.UoWFactory = store.factory
	fanout.InApp = store.inApp
	app.factory = store.factory

	idempotency, err := buildIdempotencyStore(ctx, cfg, mongoClient)
	if err != nil {
		return nil, err
	}

	payments, webhooks, err := buildPayments(cfg, logger)
	if err != nil {
		return nil, err
	}
	resolver, err := buildTokenResolver(cfg, logger)
	if err != nil {
		return nil, err
	}
	limiter := app.buildRateLimiter(cfg)

	if store.durable != nil {
		if err := app.buildDelivery(ctx, cfg, mongoClient, store.durable, fanout, logger); err != nil {
			return nil, err
		}
	}

	encoder := appoutbox.JSONEventEncoder{}
	now := time.Now

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, &bookingapp.RequestBookingHandler{
		Outbox: store.outbox, Encoder: encoder, Logger: logger, Now: now,
	})
	commands.RegisterHandler(commandBus, &bookingapp.CancelBookingHandler{
		Payments: payments, Outbox: store.outbox, Encoder: encoder, Logger: logger, Now: now,
	})
	commands.RegisterHandler(commandBus, &bookingapp.CompleteStaysHandler{
		Outbox: store.outbox, Encoder: encoder, Logger: logger, Now: now,
	})
	checkout := &paymentsapp.Checkout{
		Payments:   payments,
		Outbox:     store.outbox,
		Encoder:    encoder,
		Logger:     logger,
		SessionTTL: cfg.CheckoutSessionTTL,
		Now:        now,
	}
	checkout.Register(commandBus)
	hostDates := &availabilityapp.HostDatesHandler{Outbox: store.outbox, Encoder: encoder, Logger: logger, Now: now}
	hostDates.Register(commandBus)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, &availabilityapp.GetAvailabilityHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, &bookingapp.ListGuestBookingsHandler{UoWFactory: store.factory, Logger: logger, Now: now})

	validator := validation.New()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(idempotency, middleware.IdempotencyOptions{TTL: cfg.IdempotencyTTL, Now: now}),
		middleware.OutboxFlush(store.outbox, logger),
		middleware.Transaction(store.factory, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	app.background["completion-sweeper"] = (&schedule.Sweeper{
		Commands: commandBusWithMiddleware,
		Interval: cfg.CompletionSweepInterval,
		Logger:   logger,
	}).Run

	app.handlers = ginserver.Handlers{
		Availability: ginserver.AvailabilityHandler{Queries: queryBusWithMiddleware, Logger: logger},
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Payment: ginserver.PaymentHandler{
			Commands: commandBusWithMiddleware,
			Webhooks: webhooks,
			Logger:   logger,
		},
		HostCalendar:   ginserver.HostCalendarHandler{Commands: commandBusWithMiddleware, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Resolver: resolver, Logger: logger}.Handle,
		PaymentLimit:   ginserver.RateLimit(limiter, "payments", cfg.RateLimitPerMinute, time.Minute, logger),
	}
	return app, nil
}

func (a *application) buildStorage(ctx context.Context, cfg config.Config, mongoClient *mongostore.Client, fanout *notifications.Fanout, logger *slog.Logger) (storage, error) {
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return storage{}, err
		}
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			return storage{}, err
		}
		a.backendName = "postgres"
		a.checks["postgres"] = pool.Ping
		factory := &postgres.Factory{Pool: pool, Pricing: postgres.CheckedCalculator{Local: pricinginfra.Local{}}}
		box := &postgres.Outbox{Pool: pool, ClaimTimeout: 2 * time.Minute}
		a.putProperty = postgresPutProperty(factory)
		return storage{
			factory: factory,
			outbox:  box,
			durable: box,
			inApp:   &postgres.Notifications{Pool: pool},
		}, nil
	}

	if cfg.Production() {
		return storage{}, errors.New("DATABASE_URL is required in production")
	}
	a.backendName = "memory"
	store := memory.NewStore()
	store.Pricing = pricinginfra.Local{}
	a.putProperty = func(_ context.Context, p *properties.Property) error {
		store.PutProperty(p)
		return nil
	}
	st := storage{factory: store, inApp: &memory.InAppStore{}}

	var dispatcher appoutbox.Dispatcher = fanout
	if mongoClient != nil {
		mongoOutbox, err := mongostore.NewOutboxStore(ctx, mongoClient.DB)
		if err != nil {
			return storage{}, err
		}
		dispatcher = mongoOutbox
		st.durable = mongoOutbox
		logger.Info("memory storage with durable mongo outbox")
	}
	store.Outbox = memory.NewOutbox(dispatcher)
	st.outbox = store.Outbox
	return st, nil
}

func postgresPutProperty(factory *postgres.Factory) func(ctx context.Context, p *properties.Property) error {
	return func(ctx context.Context, p *properties.Property) error {
		unit, err := factory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return err
		}
		execCtx := uow.Bind(ctx, unit)
		if err := unit.Properties().Save(execCtx, p); err != nil {
			_ = unit.Rollback(execCtx)
			return err
		}
		return unit.Commit(execCtx)
	}
}

// buildDelivery drains the durable outbox. With Kafka the worker publishes
// and a consumer group feeds notifications; without it the worker hands
// envelopes to the relay in process.
func (a *application) buildDelivery(ctx context.Context, cfg config.Config, mongoClient *mongostore.Client, durable outboxinfra.Store, fanout *notifications.Fanout, logger *slog.Logger) error {
	var inbox outboxinfra.Inbox = memory.NewInbox()
	if mongoClient != nil {
		mongoInbox, err := mongostore.NewInbox(ctx, mongoClient.DB, "notifications")
		if err != nil {
			return err
		}
		inbox = mongoInbox
	}
	relay := &outboxinfra.Relay{Inbox: inbox, Dispatcher: fanout, Logger: logger}

	var producer outboxinfra.Producer = outboxinfra.LocalProducer{Relay: relay}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.NewProducer(cfg.KafkaBrokers, "hiddystays-outbox")
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		a.onClose(func(context.Context) error { return kp.Close() })
		producer = kp

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "hiddystays-notifications", relay, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.onClose(func(context.Context) error { return consumer.Close() })
		topics := []string{outboxinfra.TopicFor(cfg.KafkaTopicPrefix, booking.EventConfirmed)}
		a.background["notifications-consumer"] = func(ctx context.Context) error {
			return consumer.Run(ctx, topics)
		}
	}

	worker := &outboxinfra.Worker{
		Store:       durable,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	a.background["outbox-worker"] = worker.Run
	return nil
}

func buildIdempotencyStore(ctx context.Context, cfg config.Config, mongoClient *mongostore.Client) (middleware.IdempotencyStore, error) {
	if mongoClient != nil {
		return mongostore.NewIdempotencyStore(ctx, mongoClient.DB, cfg.IdempotencyTTL)
	}
	return memory.NewIdempotencyStore(cfg.IdempotencyTTL), nil
}

func buildPayments(cfg config.Config, logger *slog.Logger) (policies.PaymentProvider, policies.WebhookVerifier, error) {
	if cfg.StripeSecretKey != "" {
		provider := stripe.New(stripe.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		})
		return provider, provider, nil
	}
	if cfg.Production() {
		return nil, nil, errors.New("STRIPE_SECRET_KEY is required in production")
	}
	logger.Warn("stripe not configured, using in-memory payment provider")
	return memory.NewPaymentProvider(), nil, nil
}

func buildTokenResolver(cfg config.Config, logger *slog.Logger) (policies.TokenResolver, error) {
	if cfg.SupabaseURL != "" {
		return auth.NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey), nil
	}
	if cfg.Production() {
		return nil, errors.New("SUPABASE_URL is required in production")
	}
	logger.Warn("supabase not configured, accepting static development tokens")
	return auth.Static{}, nil
}

func buildMailer(cfg config.Config, logger *slog.Logger) policies.Notifier {
	if cfg.ResendAPIKey != "" {
		return notify.NewResend(cfg.ResendAPIKey, cfg.EmailFrom)
	}
	return notify.Log{Logger: logger}
}

func (a *application) buildRateLimiter(cfg config.Config) policies.RateLimiter {
	if cfg.RedisAddr == "" {
		return memory.NewRateLimiter()
	}
	client := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	limiter := &ratelimit.Redis{Client: client, Prefix: "hiddystays:ratelimit:"}
	a.checks["redis"] = limiter.Ping
	a.onClose(func(context.Context) error { return client.Close() })
	return limiter
}
