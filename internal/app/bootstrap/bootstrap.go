package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	audittrail "ballotbox/contexts/election-operations/audit-trail"
	auditpostgres "ballotbox/contexts/election-operations/audit-trail/adapters/postgres"
	votecoordinator "ballotbox/contexts/election-operations/vote-coordinator"
	votepostgres "ballotbox/contexts/election-operations/vote-coordinator/adapters/postgres"
	voteworkers "ballotbox/contexts/election-operations/vote-coordinator/application/workers"
	"ballotbox/internal/platform/config"
	"ballotbox/internal/platform/db"
	"ballotbox/internal/platform/httpserver"
	"ballotbox/internal/platform/messaging"
	"ballotbox/internal/platform/metrics"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  voteworkers.OutboxRelay
	relayEnabled bool
	pollInterval time.Duration
	metricsAddr  string
	metrics      http.Handler
	logger       *slog.Logger

	startConsumers func(context.Context) error
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

	voteRepo := votepostgres.NewRepository(pg.DB, logger)
	if err := voteRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	voteModule := votecoordinator.NewModule(votecoordinator.Dependencies{
		Directory: voteRepo,
		Ledger:    voteRepo,
		Tallies:   voteRepo,
		Outbox:    voteRepo,
		Clock:     votepostgres.SystemClock{},
		IDGen:     votepostgres.UUIDGenerator{},
		Logger:    logger,
	})

	auditRepo := auditpostgres.NewRepository(pg.DB, logger)
	if err := auditRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	auditModule := audittrail.NewModule(audittrail.Dependencies{
		Entries:  auditRepo,
		Dedup:    auditRepo,
		Clock:    votepostgres.SystemClock{},
		IDGen:    votepostgres.UUIDGenerator{},
		DedupTTL: cfg.AuditDedupTTL,
		Disabled: !cfg.EnableAuditTrail,
		Logger:   logger,
	})

	server := httpserver.New(voteModule, auditModule, metrics.NewRegistry(), logger, normalizeAddr(cfg.HTTPPort))
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
		return nil, err
	}

	voteRepo := votepostgres.NewRepository(pg.DB, logger)
	if err := voteRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	auditRepo := auditpostgres.NewRepository(pg.DB, logger)
	if err := auditRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}

	auditConsumer := audittrail.NewModule(audittrail.Dependencies{
		Entries:    auditRepo,
		Dedup:      auditRepo,
		Subscriber: kafka,
		Clock:      votepostgres.SystemClock{},
		IDGen:      votepostgres.UUIDGenerator{},
		DedupTTL:   cfg.AuditDedupTTL,
		Disabled:   !cfg.EnableAuditTrail,
		Logger:     logger,
	}).Consumer

	registry := metrics.NewRegistry()

	return &WorkerApp{
		postgres: pg,
		outboxRelay: voteworkers.OutboxRelay{
			Outbox:    voteRepo,
			Publisher: kafka,
			Clock:     votepostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Relayed:   registry.EventsRelayed,
			Logger:    logger,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		pollInterval: cfg.OutboxRelayInterval,
		metricsAddr:  normalizeAddr(cfg.HTTPPort),
		metrics:      registry.Handler(),
		logger:       logger,
		startConsumers: func(ctx context.Context) error {
			return auditConsumer.Start(ctx)
		},
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
	if w.startConsumers != nil {
		if err := w.startConsumers(ctx); err != nil {
			return err
		}
	}

	if w.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", w.metrics)
		srv := &http.Server{Addr: w.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.logger.Error("worker metrics listener failed",
					"event", "bootstrap_worker_metrics_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
		defer srv.Close()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"relay_enabled", w.relayEnabled,
	)

	for {
		if w.relayEnabled {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
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
