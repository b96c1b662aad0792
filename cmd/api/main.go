package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/analysis"
	httptransport "github.com/spec-kit/incident-coordinator/internal/api/http"
	"github.com/spec-kit/incident-coordinator/internal/api/http/handlers"
	"github.com/spec-kit/incident-coordinator/internal/chain"
	"github.com/spec-kit/incident-coordinator/internal/config"
	"github.com/spec-kit/incident-coordinator/internal/coordinator"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
	"github.com/spec-kit/incident-coordinator/internal/observability"
	"github.com/spec-kit/incident-coordinator/internal/persistence"
	"github.com/spec-kit/incident-coordinator/internal/registry"
	"github.com/spec-kit/incident-coordinator/internal/repository"
	"github.com/spec-kit/incident-coordinator/internal/session"
	"github.com/spec-kit/incident-coordinator/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	stakeRepo := repository.NewStakePositionRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	tokens := session.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.TTLMinutes)
	sessions := session.NewManager(session.NewRedisStore(redis.Client), tokens, dispatcher, logger, cfg.Session.TTLMinutes)

	roles := registry.NewRoleRegistry(roleRepo)

	adapters := map[domain.Chain]chain.Adapter{
		domain.ChainEVM: chain.NewEVMAdapter(cfg.EVM),
		domain.ChainDAG: chain.NewDAGAdapter(cfg.DAG),
	}

	coord := coordinator.New(coordinator.Dependencies{
		Tickets:    ticketRepo,
		Stakes:     stakeRepo,
		Roles:      roles,
		Sessions:   sessions,
		Adapters:   adapters,
		Dispatcher: dispatcher,
		Analyzer:   analysis.NewClient(cfg.Analysis),
		Cache:      redis,
		Metrics:    metrics,
		Logger:     logger,
		Timing: coordinator.Timing{
			ReceiptTimeout: map[domain.Chain]time.Duration{
				domain.ChainEVM: cfg.EVM.ReceiptTimeout(),
				domain.ChainDAG: cfg.DAG.ReceiptTimeout(),
			},
			GracePeriod: map[domain.Chain]time.Duration{
				domain.ChainEVM: cfg.EVM.GracePeriod(),
				domain.ChainDAG: cfg.DAG.GracePeriod(),
			},
		},
	})

	notifier := worker.NewNotifier(dispatcher, logger)
	notifier.RegisterHandlers()

	reconciler := worker.NewReconciler(coord, logger, cfg.Reconciler)
	go reconciler.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Sessions: handlers.NewSessionHandler(sessions),
		Tickets:  handlers.NewTicketsHandler(coord),
		Roles:    handlers.NewRolesHandler(roles),
		Tokens:   tokens,
		Manager:  sessions,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
