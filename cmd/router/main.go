package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/modmail-router/internal/api/http"
	"github.com/spec-kit/modmail-router/internal/api/http/handlers"
	"github.com/spec-kit/modmail-router/internal/auth"
	"github.com/spec-kit/modmail-router/internal/channel"
	"github.com/spec-kit/modmail-router/internal/config"
	"github.com/spec-kit/modmail-router/internal/correlate"
	"github.com/spec-kit/modmail-router/internal/events"
	"github.com/spec-kit/modmail-router/internal/observability"
	"github.com/spec-kit/modmail-router/internal/persistence"
	"github.com/spec-kit/modmail-router/internal/repository"
	"github.com/spec-kit/modmail-router/internal/routing"
	"github.com/spec-kit/modmail-router/internal/service"
	"github.com/spec-kit/modmail-router/internal/transport"
	"github.com/spec-kit/modmail-router/internal/worker"
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

	var store repository.TicketStore
	if pool := pg.PoolHandle(); pool != nil {
		store = repository.NewPostgresTicketStore(pool)
	} else {
		store = repository.NewMemoryTicketStore()
	}

	gateway := transport.NewGatewayClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Routing.SendTimeout())
	channels := channel.NewManager(gateway, cfg.Routing, logger)

	if _, err := channels.SweepStale(ctx, store); err != nil {
		logger.Fatal("stale ticket sweep failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	engine := routing.NewEngine(cfg.Routing, routing.Dependencies{
		Store:      store,
		Channels:   channels,
		Sender:     gateway,
		Correlator: correlate.NewCorrelator(store, gateway, logger),
		Dispatcher: dispatcher,
		Dedupe:     routing.NewDeduper(redis.Client, cfg.Routing.DedupeTTL(), logger),
		Metrics:    metrics,
		Logger:     logger,
	})

	adminService := service.NewAdminService(service.AdminDependencies{
		Store:  store,
		Engine: engine,
		Logger: logger,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(cfg.Auth, tokens),
		Ingest:         handlers.NewIngestHandler(engine),
		Admin:          handlers.NewAdminHandler(adminService),
		AuthMiddleware: auth.NewMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
