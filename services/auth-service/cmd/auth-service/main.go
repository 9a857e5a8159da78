package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/datasource"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/libs/httpx"
	"github.com/md-rashed-zaman/tasktracker/libs/metrics"
	otelx "github.com/md-rashed-zaman/tasktracker/libs/otel"
	"github.com/md-rashed-zaman/tasktracker/libs/runtime"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/handlers"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/uow"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		runtime.NewLogger("auth-service").Error("auth-service exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := runtime.NewLogger(cfg.Service)

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

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	bus := libevents.NewBus(sources.Publisher(), events.NewRegistry(), metrics.NewEvents(reg))
	factory := &uow.Factory{
		Store:  sources.Store,
		Sender: bus,
		Pepper: []byte(cfg.CredentialPepper),
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
	r.Group(func(r chi.Router) {
		r.Use(httpx.RateLimit(httpx.NewLimiter(sources.Redis(), cfg.RateLimitPerMinute, cfg.Service), logger, true))
		handlers.NewUserHandler(factory, tokens, logger).Routes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, cfg.Service),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return runtime.Serve(ctx, srv, logger)
}
