// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	capabilityservice "bastion/contexts/identity-access/capability-service"
	capabilitypg "bastion/contexts/identity-access/capability-service/adapters/postgres"
	groupgraphservice "bastion/contexts/identity-access/group-graph-service"
	groupgraphpg "bastion/contexts/identity-access/group-graph-service/adapters/postgres"
	instanceservice "bastion/contexts/identity-access/instance-service"
	instancepg "bastion/contexts/identity-access/instance-service/adapters/postgres"
	"bastion/internal/platform/config"
	"bastion/internal/platform/db"
	"bastion/internal/platform/httpserver"
	"bastion/internal/platform/messaging"
	"bastion/internal/shared/audit"
)

const workerPollInterval = 2 * time.Second

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	relays       []audit.Relay
	pollInterval time.Duration
	logger       *slog.Logger
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

	groupRepo := groupgraphpg.NewRepository(pg.DB, logger)
	capabilityRepo := capabilitypg.NewRepository(pg.DB, logger)
	instanceRepo := instancepg.NewRepository(pg.DB, logger)
	if err := groupRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	if err := capabilityRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	if err := instanceRepo.AutoMigrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}

	groupModule := groupgraphservice.NewModule(groupgraphservice.Dependencies{
		Repository:  groupRepo,
		Clock:       groupgraphpg.SystemClock{},
		IDGenerator: groupgraphpg.UUIDGenerator{},
		Logger:      logger,
	})
	capabilityModule := capabilityservice.NewModule(capabilityservice.Dependencies{
		Repository:  capabilityRepo,
		Directory:   groupModule.Service,
		Clock:       capabilitypg.SystemClock{},
		IDGenerator: capabilitypg.UUIDGenerator{},
		Logger:      logger,
		GroupCheck:  cfg.EnableGroupExistenceCheck,
	})
	instanceModule := instanceservice.NewModule(instanceservice.Dependencies{
		Store:       instanceRepo,
		Catalog:     capabilityModule.Service,
		Clock:       instancepg.SystemClock{},
		IDGenerator: instancepg.UUIDGenerator{},
		Logger:      logger,
	})

	server := httpserver.New(groupModule, capabilityModule, instanceModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{server: server, postgres: pg, logger: logger}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (a *APIApp) Close() error {
	return a.postgres.Close()
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

	var relays []audit.Relay
	if cfg.EnableAuditRelay {
		relays = []audit.Relay{
			{
				Source:    "group-graph",
				Log:       groupgraphpg.NewRepository(pg.DB, logger),
				Publisher: kafka,
				Topic:     cfg.AuditTopic,
				BatchSize: 100,
				Logger:    logger,
			},
			{
				Source:    "capability",
				Log:       capabilitypg.NewRepository(pg.DB, logger),
				Publisher: kafka,
				Topic:     cfg.AuditTopic,
				BatchSize: 100,
				Logger:    logger,
			},
			{
				Source:    "instance",
				Log:       instancepg.NewRepository(pg.DB, logger),
				Publisher: kafka,
				Topic:     cfg.AuditTopic,
				BatchSize: 100,
				Logger:    logger,
			},
		}
	}

	return &WorkerApp{
		postgres:     pg,
		relays:       relays,
		pollInterval: workerPollInterval,
		logger:       logger,
	}, nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker starting",
		"event", "worker_starting",
		"module", "internal/app/bootstrap",
		"layer", "worker",
		"relay_count", len(w.relays),
		"poll_interval", w.pollInterval.String(),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, relay := range w.relays {
				if err := relay.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("relay cycle failed",
						"event", "worker_relay_cycle_failed",
						"module", "internal/app/bootstrap",
						"layer", "worker",
						"source", relay.Source,
						"error", err.Error(),
					)
				}
			}
		}
	}
}

func (w *WorkerApp) Close() error {
	return w.postgres.Close()
}

func normalizeAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
