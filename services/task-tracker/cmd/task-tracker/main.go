package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/consumer"
	"github.com/md-rashed-zaman/tasktracker/libs/datasource"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/libs/httpx"
	"github.com/md-rashed-zaman/tasktracker/libs/metrics"
	otelx "github.com/md-rashed-zaman/tasktracker/libs/otel"
	"github.com/md-rashed-zaman/tasktracker/libs/runtime"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/handlers"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/service"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// Usage: task-tracker [server|consumer|all]
func main() {
	if err := run(os.Args[1:]); err != nil {
		runtime.NewLogger("task-tracker").Error("task-tracker exited", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := runtime.NewLogger(cfg.Service).With("mode", cfg.Mode)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	sources, err := datasource.New(cfg.Sources, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sources.Close(); err != nil {
			logger.Warn("datasource close failed", "err", err)
		}
	}()

	reg := metrics.NewRegistry()
	eventMetrics := metrics.NewEvents(reg)
	registry := events.NewRegistry()
	factory := &uow.Factory{
		Store:  sources.Store,
		Sender: libevents.NewBus(sources.Publisher(), registry, eventMetrics),
		Logger: logger,
	}

	r := chi.NewRouter()
	r.Use(
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
	)
	runtime.MountHealth(r, sources.ReadyChecks()...)
	r.Handle("/metrics", metrics.Handler(reg))

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Mode != modeConsumer {
		tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.DefaultTTL)
		if err != nil {
			return err
		}
		r.Group(func(r chi.Router) {
			r.Use(httpx.RateLimit(httpx.NewLimiter(sources.Redis(), cfg.RateLimitPerMinute, cfg.Service), logger, true))
			handlers.NewTaskHandler(factory, tokens, logger).Routes(r)
		})
	}
	if cfg.Mode != modeServer {
		c, err := newConsumer(cfg, sources, registry, factory, logger, eventMetrics)
		if err != nil {
			return err
		}
		g.Go(func() error { return c.Run(ctx) })
	}

	// The consumer keeps the HTTP server for health checks and metrics.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, cfg.Service),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error { return runtime.Serve(ctx, srv, logger) })
	return g.Wait()
}

func newConsumer(
	cfg Config,
	sources *datasource.Sources,
	registry *libevents.Registry,
	factory *uow.Factory,
	logger *slog.Logger,
	m *metrics.Events,
) (*consumer.Consumer[*uow.UnitOfWork], error) {
	table, err := service.Handlers()
	if err != nil {
		return nil, fmt.Errorf("handler table: %w", err)
	}
	return consumer.New(sources.Subscriber(), registry, table, factory.New, logger, m, cfg.Consumer), nil
}
