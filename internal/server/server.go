// Package server assembles the point store, the service and the HTTP
// transport into the process started by the run subcommand.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"paustdb/docs"
	"paustdb/internal/config"
	"paustdb/internal/database"
	"paustdb/internal/database/migration"
	"paustdb/internal/discovery"
	handlers "paustdb/internal/http/handler"
	"paustdb/internal/http/middleware"
	"paustdb/internal/logging"
	appotel "paustdb/internal/otel"
	"paustdb/internal/repository"
	"paustdb/internal/repository/memory"
	"paustdb/internal/repository/postgres"
	"paustdb/internal/repository/sqlite"
	"paustdb/internal/service"
	"paustdb/internal/storage"
)

const serviceName = "paustdb"

// Server runs one PaustDB node.
type Server struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	registry *prometheus.Registry
}

// New validates cfg and prepares the logger. Nothing is opened until Serve.
func New(cfg *config.AppConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		Location: cfg.Location(),
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{cfg: cfg, logger: logger, registry: reg}, nil
}

// Serve opens the store and serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	shutdownTracing, err := appotel.Init(ctx, s.logger, serviceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			s.logger.Error("tracing_shutdown_failed", "err", err)
		}
	}()

	repo, err := openRepository(ctx, s.cfg.Store, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			s.logger.Error("store_close_failed", "err", err)
		}
	}()

	store, err := openStorage(ctx, s.cfg.MinIO)
	if err != nil {
		return err
	}

	metrics, err := service.NewMetrics(s.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	svc := service.NewPointService(repo, store, service.Options{
		MaxBatchSize: s.cfg.MaxBatchSize,
		URLExpiry:    time.Duration(s.cfg.MinIO.URLExpirySeconds) * time.Second,
		Metrics:      metrics,
		Logger:       s.logger,
	})

	app, err := s.buildApp(repo, svc)
	if err != nil {
		return err
	}

	addr := ":" + s.cfg.Port
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	if s.cfg.Consul.Enabled() {
		registrar, err := s.newRegistrar(ln)
		if err != nil {
			ln.Close()
			return err
		}
		if err := registrar.Register(ctx); err != nil {
			ln.Close()
			return err
		}
		defer func() {
			if err := registrar.Deregister(s.shutdownTimeout()); err != nil {
				s.logger.Error("consul_deregister_failed", "err", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server_started", "addr", ln.Addr().String(), "store", s.cfg.Store.Backend, "archive", store != nil)
		if err := app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("server_stopping")
		err := app.ShutdownWithTimeout(s.shutdownTimeout())
		// Unblocks a listener that had not started serving yet.
		ln.Close()
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	s.logger.Info("server_stopped")
	return err
}

// newRegistrar announces the port ln is bound to.
func (s *Server) newRegistrar(ln net.Listener) (*discovery.Registrar, error) {
	tcp, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected listener address %s", ln.Addr())
	}
	return discovery.NewRegistrar(s.cfg.Consul, tcp.Port, s.logger)
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.cfg.ShutdownTimeoutSec) * time.Second
}

// buildApp wires middleware, the v1 API, metrics and API docs onto a fiber app.
func (s *Server) buildApp(repo repository.PointRepository, svc service.PointService) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:               "PaustDB",
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             s.cfg.BodyLimitBytes,
		DisableStartupMessage: true,
	})

	prom, err := middleware.NewPrometheusMiddleware(s.registry)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(s.logger))
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, repo, svc)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app, nil
}

// openRepository opens the configured backend and brings its schema up to date.
func openRepository(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (repository.PointRepository, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewPointMemory(), nil

	case config.BackendSQLite:
		db, err := database.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, migration.SQLite, logger); err != nil {
			return nil, errors.Join(err, db.Close())
		}
		return sqlite.NewPointSQLite(db), nil

	case config.BackendPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, migration.Postgres, logger); err != nil {
			return nil, errors.Join(err, db.Close())
		}
		return postgres.NewPointPostgres(db), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openStorage returns nil when object storage is not configured, which disables archives.
func openStorage(ctx context.Context, cfg config.MinIOConfig) (storage.Storage, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	store, err := storage.NewMinIO(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return store, nil
}
