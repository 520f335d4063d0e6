// intakesvc serves the intake form CRUD API and publishes completion events.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/intakehub/intake-go/health"
	"github.com/intakehub/intake-go/internal/cache"
	"github.com/intakehub/intake-go/internal/config"
	"github.com/intakehub/intake-go/internal/httpapi"
	"github.com/intakehub/intake-go/internal/logging"
	"github.com/intakehub/intake-go/internal/rabbitmq"
	"github.com/intakehub/intake-go/internal/store"
	"github.com/intakehub/intake-go/messaging"
)

func main() {
	if err := run(); err != nil {
		var help *config.HelpError
		if errors.As(err, &help) {
			fmt.Println(help.Help)
			return
		}
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New("intakesvc", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("redis connected")

	connManager, err := rabbitmq.NewConnectionManager(cfg.BrokerURL, rabbitmq.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create connection manager: %w", err)
	}
	defer connManager.Close()

	if err := connManager.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	logger.Info("broker connected", "url", rabbitmq.SanitizeURL(cfg.BrokerURL))

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatcher := messaging.NewIntakeCompletedDispatcher(
		messaging.NewConnectionProvider(connManager),
		messaging.WithDispatcherConfig(messaging.DispatcherConfig{
			Exchange:     cfg.Exchange,
			ExchangeType: cfg.ExchangeType,
			Durable:      cfg.Durable,
		}),
		messaging.WithDispatcherLogger(logger),
		messaging.WithDispatcherMetrics(messaging.NewPrometheusCollector(metricsRegistry)),
	)
	if err := dispatcher.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize dispatcher: %w", err)
	}

	registry := health.NewRegistry()
	registry.SetMetadata("service", "intakesvc")
	registry.Register(health.NewPingChecker("postgres", store.ReadyCheck(pool)))
	registry.Register(health.NewPingChecker("redis", redisClient.Ping))
	registry.Register(health.NewBrokerChecker(connManager))

	handler := httpapi.NewFormHandler(
		store.NewFormRepository(pool),
		cache.NewFormCache(redisClient, cfg.CacheTTL),
		dispatcher,
		logger,
	)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:          cfg.RequestRateLimit,
	}, handler, registry, metricsRegistry, logger)

	server := httpapi.NewServer(cfg.HTTPAddr, router)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Give in-flight publishes a moment to settle before the deferred broker
	// close.
	time.Sleep(100 * time.Millisecond)
	return nil
}
