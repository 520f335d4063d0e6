// intakeworker consumes completion events and records processing receipts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intakehub/intake-go/contracts"
	"github.com/intakehub/intake-go/internal/config"
	"github.com/intakehub/intake-go/internal/logging"
	"github.com/intakehub/intake-go/internal/rabbitmq"
	"github.com/intakehub/intake-go/internal/store"
	"github.com/intakehub/intake-go/internal/worker"
	"github.com/intakehub/intake-go/messaging"
)

func main() {
	if err := run(); err != nil {
		var help *config.HelpError
		if errors.As(err, &help) {
			fmt.Println(help.Help)
			return
		}
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New("intakeworker", cfg.LogLevel)
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

	connManager, err := rabbitmq.NewConnectionManager(cfg.BrokerURL, rabbitmq.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create connection manager: %w", err)
	}
	defer connManager.Close()

	if err := connManager.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	logger.Info("broker connected", "url", rabbitmq.SanitizeURL(cfg.BrokerURL))

	provider := messaging.NewConnectionProvider(connManager)
	metricsRegistry := prometheus.NewRegistry()

	// The exchange must exist before the queue can bind to it; the consumer
	// side declares it too so the worker does not depend on service startup
	// order.
	dispatcher := messaging.NewEventDispatcher(provider,
		messaging.WithDispatcherConfig(messaging.DispatcherConfig{
			Exchange:     cfg.Exchange,
			ExchangeType: cfg.ExchangeType,
			Durable:      cfg.Durable,
		}),
		messaging.WithDispatcherLogger(logger),
	)
	if err := dispatcher.Initialize(ctx); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	consumer := messaging.NewEventConsumer(provider,
		messaging.WithConsumerConfig(messaging.ConsumerConfig{
			QueueName:     cfg.QueueName,
			Exchange:      cfg.Exchange,
			RoutingKeys:   cfg.RoutingKeyList(),
			Durable:       cfg.Durable,
			PrefetchCount: cfg.PrefetchCount,
			QueueArgs:     rabbitmq.DeadLetterArgs(cfg.QueueName),
		}),
		messaging.WithConsumerLogger(logger),
		messaging.WithConsumerMetrics(messaging.NewPrometheusCollector(metricsRegistry)),
	)

	consumer.On(contracts.EventTypeIntakeCompleted, worker.NewReceiptHandler(store.NewReceiptRepository(pool), logger))
	consumer.On(contracts.EventTypeIntakeCompleted, worker.NewNotifyHandler(logger))

	w := worker.New(connManager, consumer, logger)
	if err := w.DeclareDeadLetterTopology(ctx, cfg.QueueName); err != nil {
		return err
	}

	logger.Info("worker starting",
		"queue", cfg.QueueName,
		"routingKeys", cfg.RoutingKeyList(),
		"prefetchCount", cfg.PrefetchCount,
	)
	return w.Run(ctx)
}
