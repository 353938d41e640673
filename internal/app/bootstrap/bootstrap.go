package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	incomingmessageservice "gridgate/contexts/market-exchange/incoming-message-service"
	intakepostgres "gridgate/contexts/market-exchange/incoming-message-service/adapters/postgres"
	intakeredis "gridgate/contexts/market-exchange/incoming-message-service/adapters/redis"
	intakeports "gridgate/contexts/market-exchange/incoming-message-service/ports"
	outgoingmessageservice "gridgate/contexts/market-exchange/outgoing-message-service"
	mailboxpostgres "gridgate/contexts/market-exchange/outgoing-message-service/adapters/postgres"
	mailboxworkers "gridgate/contexts/market-exchange/outgoing-message-service/application/workers"
	"gridgate/internal/platform/cache"
	"gridgate/internal/platform/config"
	"gridgate/internal/platform/db"
	"gridgate/internal/platform/httpserver"
	"gridgate/internal/platform/messaging"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	sweeper         mailboxworkers.RetentionSweeper
	consumer        mailboxworkers.ResultAvailableConsumer
	enableSweeper   bool
	enableConsumer  bool
	sweepInterval   time.Duration
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	registry := documents.NewDefaultRegistry()

	intakeRepo := intakepostgres.NewRepository(pg.DB, logger)
	var authorization intakeports.AuthorizationService = intakepostgres.NewAuthorizationStore(pg.DB, logger)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisClient, redisErr := cache.Connect(context.Background(), cfg.RedisURL)
		if redisErr != nil {
			_ = pg.Close()
			return nil, redisErr
		}
		authorization = intakeredis.NewAuthorizationCache(redisClient, authorization, cfg.AuthorizationTTL)
	}

	intakeModule := incomingmessageservice.NewModule(incomingmessageservice.Dependencies{
		Registry:      intakeRepo,
		Authorization: authorization,
		Documents:     registry,
		Clock:         intakepostgres.SystemClock{},
		HubActor:      markets.HubActor,
		Logger:        logger,
	})

	mailboxRepo := mailboxpostgres.NewRepository(pg.DB, logger)
	mailboxModule := outgoingmessageservice.NewModule(outgoingmessageservice.Dependencies{
		Messages:        mailboxRepo,
		Bundles:         mailboxRepo,
		Locks:           mailboxRepo,
		Blobs:           mailboxpostgres.NewBlobStore(pg.DB, logger),
		Dedup:           mailboxRepo,
		Documents:       registry,
		Clock:           mailboxpostgres.SystemClock{},
		IDGenerator:     mailboxpostgres.UUIDGenerator{},
		HubActor:        markets.HubActor,
		MaxBundleSize:   cfg.MaxBundleSize,
		RetentionWindow: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		SweepBatchSize:  cfg.SweepBatchSize,
		Logger:          logger,
	})

	server := httpserver.New(intakeModule, mailboxModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	mailboxRepo := mailboxpostgres.NewRepository(pg.DB, logger)
	mailboxModule := outgoingmessageservice.NewModule(outgoingmessageservice.Dependencies{
		Messages:        mailboxRepo,
		Bundles:         mailboxRepo,
		Locks:           mailboxRepo,
		Blobs:           mailboxpostgres.NewBlobStore(pg.DB, logger),
		Dedup:           mailboxRepo,
		Subscriber:      kafka,
		Documents:       documents.NewDefaultRegistry(),
		Clock:           mailboxpostgres.SystemClock{},
		IDGenerator:     mailboxpostgres.UUIDGenerator{},
		HubActor:        markets.HubActor,
		MaxBundleSize:   cfg.MaxBundleSize,
		RetentionWindow: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		SweepBatchSize:  cfg.SweepBatchSize,
		Logger:          logger,
	})

	return &WorkerApp{
		postgres:       pg,
		sweeper:        mailboxModule.RetentionSweeper,
		consumer:       mailboxModule.ResultConsumer,
		enableSweeper:  cfg.EnableRetention,
		enableConsumer: cfg.EnableResultIntake,
		sweepInterval:  cfg.SweepInterval,
		logger:         logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.enableConsumer {
		if err := w.consumer.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", w.sweepInterval.String(),
	)

	for {
		if w.enableSweeper {
			if _, err := w.sweeper.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
