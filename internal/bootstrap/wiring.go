package bootstrap

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgerflow/paymentcore/common"
	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/common/mpostgres"
	"github.com/ledgerflow/paymentcore/common/mrabbitmq"
	"github.com/ledgerflow/paymentcore/common/mredis"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/balance"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/idempotency"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/payment"
	"github.com/ledgerflow/paymentcore/internal/adapters/rabbitmq"
	"github.com/ledgerflow/paymentcore/internal/adapters/redis"
	"github.com/ledgerflow/paymentcore/internal/dispatcher"
	"github.com/ledgerflow/paymentcore/internal/httpin"
	"github.com/ledgerflow/paymentcore/internal/idgen"
	"github.com/ledgerflow/paymentcore/internal/services/command"
	"github.com/ledgerflow/paymentcore/internal/services/query"
	"github.com/ledgerflow/paymentcore/internal/uow"
)

// App is the fully wired process: every connection hub, use case, and
// Launcher App, ready for cmd/app or cmd/dispatcher to select from.
type App struct {
	Config *Config
	Logger mlog.Logger

	Postgres *mpostgres.PostgresConnection
	Redis    *mredis.RedisConnection
	RabbitMQ *mrabbitmq.RabbitMQConnection

	Router        *fiber.App
	Dispatcher    *dispatcher.Dispatcher
	IdempotencyGC *IdempotencyGC
}

// Build wires every connection hub and use case from cfg. Callers
// choose which of the returned App's Launcher-compatible members to
// run (HTTPFrontDoor wraps Router; Dispatcher and IdempotencyGC already
// implement common.App directly).
func Build(cfg *Config) (*App, error) {
	level, err := mlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	logger, err := mlog.NewZapLogger(level)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	ctx := context.Background()

	pg := &mpostgres.PostgresConnection{
		ConnectionString: cfg.DatabaseURL,
		MigrationsPath:   cfg.MigrationsPath,
		Logger:           logger.WithFields("component", "postgres"),
	}
	if err := pg.Connect(); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisConn := &mredis.RedisConnection{
		ConnectionString: cfg.RedisURL,
		Logger:           logger.WithFields("component", "redis"),
	}
	if err := redisConn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	rmq := &mrabbitmq.RabbitMQConnection{
		ConnectionString: cfg.BrokerURL,
		Logger:           logger.WithFields("component", "rabbitmq"),
	}
	if err := rmq.Connect(); err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	uowFactory := uow.NewFactory(pg.DB)
	idGen := idgen.New()

	cmdUC := command.NewUseCase(uowFactory, idGen, logger.WithFields("component", "authorize"))
	cmdUC.Cache = redis.NewResponseCache(redisConn.Client, "idempotency-response:")
	cmdUC.IdempotencyTTL = cfg.IdempotencyTTL

	qryUC := query.NewUseCase(payment.NewPostgresRepository(pg.DB), balance.NewPostgresRepository(pg.DB))

	limiter := redis.NewSlidingWindowLimiter(redisConn.Client, cfg.RateLimitMaxRequests, cfg.RateLimitWindowSeconds, "ratelimit:")

	handlers := httpin.NewHandlers(cmdUC, qryUC)

	checks := map[string]httpin.HealthChecker{
		"postgres": pg.HealthCheck,
		"redis":    func() bool { return redisConn.HealthCheck(ctx) },
		"rabbitmq": rmq.HealthCheck,
	}

	router := httpin.NewRouter(
		logger.WithFields("component", "http"),
		handlers,
		httpin.RateLimitConfig{Enabled: cfg.RateLimitEnabled, Limiter: limiter},
		checks,
	)

	producer := rabbitmq.NewOutboxProducer(rmq, logger.WithFields("component", "dispatcher"))

	dispatcherCfg := dispatcher.Config{
		BatchSize:               cfg.OutboxBatchSize,
		PollInterval:            cfg.OutboxPollInterval,
		MaxRetries:              cfg.OutboxMaxRetries,
		BaseDelay:               cfg.OutboxBaseDelay,
		MaxDelay:                cfg.OutboxMaxDelay,
		ConsecutiveFailureLimit: cfg.OutboxFailureLimit,
		TopicPrefix:             cfg.OutboxTopicPrefix,
	}

	disp := dispatcher.New(uowFactory, producer, dispatcherCfg, logger.WithFields("component", "dispatcher"))

	idemRepo := idempotency.NewPostgresRepository(pg.DB)
	gc := NewIdempotencyGC(idemRepo, cfg.IdempotencyGCInterval, logger.WithFields("component", "idempotency-gc"))

	return &App{
		Config:        cfg,
		Logger:        logger,
		Postgres:      pg,
		Redis:         redisConn,
		RabbitMQ:      rmq,
		Router:        router,
		Dispatcher:    disp,
		IdempotencyGC: gc,
	}, nil
}

// Close releases every connection hub. Call once on process shutdown.
func (a *App) Close() error {
	var err error

	if cerr := a.RabbitMQ.Close(); cerr != nil {
		err = cerr
	}

	if a.Postgres.DB != nil {
		if cerr := a.Postgres.DB.Close(); cerr != nil {
			err = cerr
		}
	}

	if a.Redis.Client != nil {
		if cerr := a.Redis.Client.Close(); cerr != nil {
			err = cerr
		}
	}

	return err
}

// HTTPFrontDoor adapts App.Router to common.App so it can be registered
// on a Launcher alongside the dispatcher and idempotency GC.
type HTTPFrontDoor struct {
	Router *fiber.App
	Addr   string
}

// Run implements common.App by blocking on fiber's Listen.
func (h *HTTPFrontDoor) Run(_ *common.Launcher) error {
	return h.Router.Listen(h.Addr)
}
