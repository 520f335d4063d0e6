package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intakehub/intake-go/internal/rabbitmq"
	"github.com/intakehub/intake-go/messaging"
)

// Worker owns the consumer lifecycle for the completion queue.
type Worker struct {
	connManager *rabbitmq.ConnectionManager
	consumer    *messaging.EventConsumer
	logger      *slog.Logger
}

// New builds a worker around an already-configured consumer.
func New(connManager *rabbitmq.ConnectionManager, consumer *messaging.EventConsumer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{connManager: connManager, consumer: consumer, logger: logger}
}

// DeclareDeadLetterTopology sets up the broker-side dead-letter exchange and
// queue for the given work queue. Messages the broker dead-letters (queue
// overflow, operator-configured delivery limits) land there for inspection
// instead of vanishing.
func (w *Worker) DeclareDeadLetterTopology(ctx context.Context, queueName string) error {
	ch, err := w.connManager.CreateChannel(ctx)
	if err != nil {
		return fmt.Errorf("open topology channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeadLetterTopology(queueName).Declare(ch); err != nil {
		return fmt.Errorf("declare dead-letter topology: %w", err)
	}

	w.logger.Info("dead-letter topology declared", "queue", queueName)
	return nil
}

// Run starts consuming and blocks until the context ends, then stops the
// consumer.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	<-ctx.Done()

	w.logger.Info("shutting down worker")
	return w.consumer.Stop()
}
