package messaging

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/intakehub/intake-go/contracts"
)

// Channel is the subset of the AMQP channel API the messaging core uses.
// *amqp.Channel satisfies it; tests substitute mocks.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// ChannelProvider hands out channels from the broker connection. Channel is
// the shared publish channel; CreateChannel opens an independent one for a
// consumer.
type ChannelProvider interface {
	Channel(ctx context.Context) (Channel, error)
	CreateChannel(ctx context.Context) (Channel, error)
}

// EventHandler processes a decoded domain event.
type EventHandler interface {
	Handle(ctx context.Context, evt *contracts.DomainEvent) error
}

// EventHandlerFunc is a function adapter for EventHandler.
type EventHandlerFunc func(ctx context.Context, evt *contracts.DomainEvent) error

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(ctx context.Context, evt *contracts.DomainEvent) error {
	return f(ctx, evt)
}

// MetricsCollector records messaging metrics.
type MetricsCollector interface {
	// RecordPublish records one publish attempt.
	RecordPublish(eventType, exchange string, duration time.Duration, success bool)

	// RecordConsume records one handled delivery.
	RecordConsume(eventType, queue string, duration time.Duration, success bool)
}

// NoOpMetricsCollector discards all metrics.
type NoOpMetricsCollector struct{}

// RecordPublish does nothing.
func (NoOpMetricsCollector) RecordPublish(eventType, exchange string, duration time.Duration, success bool) {
}

// RecordConsume does nothing.
func (NoOpMetricsCollector) RecordConsume(eventType, queue string, duration time.Duration, success bool) {
}
