package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/common/messaging"
	"github.com/leadgate/leadgate/gateway/internal/audit"
	"github.com/leadgate/leadgate/gateway/internal/config"
	"github.com/leadgate/leadgate/gateway/internal/dispatch"
	"github.com/leadgate/leadgate/gateway/internal/drivers"
	"github.com/leadgate/leadgate/gateway/internal/drivers/crm"
	"github.com/leadgate/leadgate/gateway/internal/drivers/tracking"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/feed"
	"github.com/leadgate/leadgate/gateway/internal/handlers"
	"github.com/leadgate/leadgate/gateway/internal/middleware"
	"github.com/leadgate/leadgate/gateway/internal/ratelimit"
	"github.com/leadgate/leadgate/gateway/internal/relay"
	"github.com/leadgate/leadgate/gateway/internal/repository"
	"github.com/leadgate/leadgate/gateway/internal/server"
	"github.com/leadgate/leadgate/gateway/internal/service"
	"github.com/leadgate/leadgate/gateway/internal/status"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting leadgate gateway",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx := context.Background()
	checks := map[string]handlers.Checker{}

	// Persistence
	var repo repository.Repository
	if cfg.Database.Type == "postgres" {
		connString := cfg.Database.Postgres.URL()
		slog.Info("Connecting to PostgreSQL",
			slog.String("host", cfg.Database.Postgres.Host),
			slog.Int("port", cfg.Database.Postgres.Port),
			slog.String("database", cfg.Database.Postgres.Database),
		)

		pgRepo, err := repository.NewPostgresRepository(ctx, connString)
		if err != nil {
			slog.Error("Failed to connect to PostgreSQL", logging.Error(err))
			os.Exit(1)
		}
		defer pgRepo.Close()
		repo = pgRepo

		if err := runMigrations(cfg.Database.MigrationsDir, connString); err != nil {
			slog.Error("Failed to run migrations", logging.Error(err))
			os.Exit(1)
		}
	} else {
		slog.Warn("Using in-memory repository (development only)")
		repo = repository.NewInMemoryRepository()
	}
	checks["database"] = repo.Ping

	var apps repository.ApplicationRepository = repo
	var limiter ratelimit.RateLimiter = ratelimit.NoOpRateLimiter{}
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("Invalid redis URL", logging.Error(err))
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		apps = repository.NewCachedApplications(repo, rdb, cfg.Redis.CacheTTL, logger.Logger)
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewRedisRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.RateLimit.Requests),
				slog.Duration("window", cfg.RateLimit.Window),
			)
		}
	}

	// Drivers
	registry := drivers.NewRegistry()
	var tracker *tracking.Client
	if cfg.Drivers.CRM.Enabled {
		client := crm.New(crm.Config{WebhookURL: cfg.Drivers.CRM.WebhookURL, Timeout: cfg.Drivers.CRM.Timeout})
		mustRegister(registry, drivers.Adapt(crm.DriverName, client))
	}
	if cfg.Drivers.Tracking.Enabled {
		t := cfg.Drivers.Tracking
		tracker = tracking.New(tracking.Config{
			ServerURL: t.ServerURL,
			SaleURL:   t.SaleURL,
			Login:     t.Login,
			Password:  t.Password,
			AccountID: t.AccountID,
			VisitorID: t.VisitorID,
			Timeout:   t.Timeout,
		})
		mustRegister(registry, tracker)
	}
	if len(registry.Names()) == 0 {
		slog.Warn("No drivers enabled; leads will be stored but not delivered")
	}

	// Event wiring: dispatch listeners first, then outcome consumers with the
	// status store ahead of the relay and the feed.
	bus := events.NewBus(logger.Logger)
	dispatch.Register(bus, registry, eligibility(cfg.Dispatch, repo), logger.Logger)
	status.NewStore(repo, logger.Logger).Register(bus)

	pub, err := relay.NewPublisher(ctx, cfg.Relay, logger.Logger)
	if err != nil {
		slog.Error("Failed to connect outcome relay", slog.String("backend", cfg.Relay.Backend), logging.Error(err))
		os.Exit(1)
	}
	if pub != nil {
		defer pub.Close()
		relay.New(pub, cfg.Relay.PublishTimeout, logger.Logger).Register(bus)
		if hc, ok := pub.(messaging.HealthChecker); ok {
			checks["broker"] = func(ctx context.Context) error {
				if st := messaging.CheckHealth(ctx, hc); !st.Connected {
					return errors.New(st.Error)
				}
				return nil
			}
		}
		slog.Info("Relaying outcomes", slog.String("backend", cfg.Relay.Backend))
	}

	hub := feed.NewHub(cfg.Feed, logger.Logger)
	hub.Register(bus)
	defer hub.Close()

	slog.Info("Event bus ready",
		slog.Any("drivers", registry.Names()),
		slog.Any("outcome_subscribers", bus.Subscribers(events.TypeRequestResponse)),
	)

	// Services and HTTP
	auditSecret := cfg.Server.AuditSecret
	if auditSecret == "" {
		auditSecret = cfg.Server.AdminToken
	}
	auditLog := audit.NewLogger(auditSecret, logger.Logger)

	leadService := service.NewLeadService(repo, repo, bus, logger.Logger).WithAudit(auditLog)
	appService := service.NewApplicationService(apps, auditLog)

	deps := server.Deps{
		Leads:      handlers.NewLeadHandler(leadService, logger.Logger),
		Admin:      handlers.NewAdminHandler(appService, logger.Logger),
		Health:     handlers.NewHealthHandler(version, checks),
		Feed:       hub,
		Gate:       middleware.NewGate(apps, cfg.Server.MaxBodyBytes, logger.Logger),
		Limiter:    limiter,
		AdminToken: cfg.Server.AdminToken,
		Logger:     logger.Logger,
	}
	if tracker != nil {
		deps.Tracking = handlers.NewTrackingHandler(tracker, logger.Logger)
	}
	if cfg.Server.AdminToken == "" {
		slog.Warn("server.admin_token is empty; admin endpoints are disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Gateway listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}
	slog.Info("Server stopped gracefully")
}

func mustRegister(reg *drivers.Registry, d drivers.Driver) {
	if err := reg.Register(d); err != nil {
		slog.Error("Failed to register driver", logging.Driver(d.Name()), logging.Error(err))
		os.Exit(1)
	}
	slog.Info("Driver enabled", logging.Driver(d.Name()))
}

func eligibility(cfg config.DispatchConfig, requests repository.RequestRepository) dispatch.Eligibility {
	var preds []dispatch.Eligibility
	if cfg.SkipExcluded {
		preds = append(preds, dispatch.SkipExcluded)
	}
	if cfg.SkipDelivered {
		preds = append(preds, dispatch.SkipDelivered(requests))
	}
	if len(preds) == 0 {
		return dispatch.ProcessAll
	}
	return dispatch.AllOf(preds...)
}

func runMigrations(dir, connString string) error {
	slog.Info("Running database migrations", slog.String("dir", dir))
	m, err := migrate.New("file://"+dir, connString)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		slog.Warn("Could not get migration version", logging.Error(err))
		return nil
	}
	slog.Info("Database migration complete",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}
