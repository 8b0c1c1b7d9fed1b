// Command example runs a small login server that signs users in with any
// configured provider and answers with the normalized profile.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"profilenorm/cache"
	"profilenorm/config"
	"profilenorm/logger"
	"profilenorm/sso"
	"profilenorm/telemetry"
)

const stateTTL = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.DefaultLogger("profilenorm").Fatal(ctx, "invalid configuration", logger.F("error", err.Error()))
	}

	log := logger.NewLogger(
		logger.WithService(cfg.ServiceName),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithHandler(logger.NewConsoleHandler(&logger.JsonFormatter{})),
		logger.WithTracing(),
	)
	defer log.Close()

	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: cfg.ServiceName})
		if err != nil {
			log.Fatal(ctx, "failed to set up telemetry", logger.F("error", err.Error()))
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Error(sctx, "telemetry shutdown failed", logger.F("error", err.Error()))
			}
		}()
		log.AddHandler(logger.NewOtelHandler("profilenorm", nil))
	}

	registry, err := sso.NewRegistry(cfg.ProviderSettings(),
		sso.WithRequired(cfg.RequiredProviderIDs()...),
		sso.WithRegistryLogger(log),
	)
	if err != nil {
		log.Fatal(ctx, "failed to build provider registry", logger.F("error", err.Error()))
	}

	stateCache, err := newStateCache(ctx, cfg)
	if err != nil {
		log.Fatal(ctx, "failed to connect state store", logger.F("error", err.Error()))
	}
	defer stateCache.Close()

	client := &http.Client{
		Timeout:   cfg.SecondaryTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	pipeline := sso.NewPipeline(registry,
		sso.WithHTTPClient(client),
		sso.WithTimeout(cfg.SecondaryTimeout),
		sso.WithLogger(log),
	)

	handler := NewLoginHandler(registry, pipeline, NewStateStore(stateCache, stateTTL), client, log)
	mux := http.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(loggingMiddleware(log)(mux), "profilenorm"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info(ctx, "login server listening",
		logger.F("addr", cfg.HTTPAddr),
		logger.F("providers", len(registry.Enabled())),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "server failed", logger.F("error", err.Error()))
	}
}

// newStateCache uses Redis when an address is configured and an in-process
// cache otherwise
func newStateCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(stateTTL, time.Minute), nil
	}
	return cache.NewRedisCache(ctx, cache.RedisConfig{
		Address:  cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.ServiceName + ":",
	})
}
