package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/intakehub/intake-go/contracts"
)

// DispatcherConfig configures the exchange an EventDispatcher publishes to.
type DispatcherConfig struct {
	Exchange     string
	ExchangeType string // direct, topic, fanout, or headers
	Durable      bool
}

// DefaultDispatcherConfig returns the stock intake topology.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Exchange:     "intake_events",
		ExchangeType: "topic",
		Durable:      true,
	}
}

var exchangeTypes = map[string]bool{
	"direct":  true,
	"topic":   true,
	"fanout":  true,
	"headers": true,
}

// EventDispatcher publishes domain events to a named exchange under a
// routing key derived from the event type.
type EventDispatcher struct {
	provider ChannelProvider
	cfg      DispatcherConfig
	logger   *slog.Logger
	metrics  MetricsCollector

	mu sync.Mutex
	ch Channel
}

// DispatcherOption configures the EventDispatcher.
type DispatcherOption func(*EventDispatcher)

// WithDispatcherConfig overrides the default exchange configuration.
func WithDispatcherConfig(cfg DispatcherConfig) DispatcherOption {
	return func(d *EventDispatcher) {
		d.cfg = cfg
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *EventDispatcher) {
		d.logger = logger
	}
}

// WithDispatcherMetrics sets the metrics collector.
func WithDispatcherMetrics(metrics MetricsCollector) DispatcherOption {
	return func(d *EventDispatcher) {
		d.metrics = metrics
	}
}

// NewEventDispatcher creates a dispatcher drawing the shared publish channel
// from the given provider.
func NewEventDispatcher(provider ChannelProvider, options ...DispatcherOption) *EventDispatcher {
	d := &EventDispatcher{
		provider: provider,
		cfg:      DefaultDispatcherConfig(),
		logger:   slog.Default(),
		metrics:  NoOpMetricsCollector{},
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Initialize obtains the shared channel and asserts the exchange. Declaring
// an exchange that already exists with matching properties is a no-op; the
// broker rejects a conflicting redeclare.
func (d *EventDispatcher) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initLocked(ctx)
}

func (d *EventDispatcher) initLocked(ctx context.Context) error {
	if d.ch != nil && !d.ch.IsClosed() {
		return nil
	}

	if !exchangeTypes[d.cfg.ExchangeType] {
		return fmt.Errorf("%w: %q", ErrInvalidExchangeType, d.cfg.ExchangeType)
	}

	ch, err := d.provider.Channel(ctx)
	if err != nil {
		return err
	}

	err = ch.ExchangeDeclare(d.cfg.Exchange, d.cfg.ExchangeType, d.cfg.Durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange %q: %w", d.cfg.Exchange, err)
	}

	d.ch = ch
	d.logger.Debug("dispatcher initialized",
		"exchange", d.cfg.Exchange,
		"exchangeType", d.cfg.ExchangeType,
		"durable", d.cfg.Durable,
	)
	return nil
}

// Dispatch publishes one event. It initializes lazily if no channel is held
// yet. Transport errors propagate to the caller; dispatch never retries
// internally.
func (d *EventDispatcher) Dispatch(ctx context.Context, evt *contracts.DomainEvent) error {
	if evt == nil {
		return ErrNilEvent
	}
	if evt.Type() == "" {
		return ErrMissingEventType
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.initLocked(ctx); err != nil {
		return err
	}

	body, err := evt.Encode()
	if err != nil {
		return err
	}

	deliveryMode := amqp.Transient
	if d.cfg.Durable {
		deliveryMode = amqp.Persistent
	}

	key := RoutingKey(evt.Type())
	start := time.Now()

	err = d.ch.PublishWithContext(ctx, d.cfg.Exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now(),
		MessageId:    evt.ID(),
		Type:         evt.Type(),
		Body:         body,
	})
	d.metrics.RecordPublish(evt.Type(), d.cfg.Exchange, time.Since(start), err == nil)

	if err != nil {
		return &PublishError{
			EventID:    evt.ID(),
			EventType:  evt.Type(),
			Exchange:   d.cfg.Exchange,
			RoutingKey: key,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	d.logger.Debug("event dispatched",
		"eventId", evt.ID(),
		"eventType", evt.Type(),
		"routingKey", key,
	)
	return nil
}

// DispatchResult is the outcome of one event within a batch.
type DispatchResult struct {
	EventID string
	Err     error
}

// Ok reports whether the event was handed to the broker client.
func (r DispatchResult) Ok() bool {
	return r.Err == nil
}

// DispatchBatch dispatches events strictly in input order, one at a time, on
// the shared channel, so publish order matches the sequence. A per-event
// failure is captured in that position's result instead of aborting the
// batch; the returned slice always has one entry per input event.
func (d *EventDispatcher) DispatchBatch(ctx context.Context, events []*contracts.DomainEvent) []DispatchResult {
	results := make([]DispatchResult, len(events))

	for i, evt := range events {
		if evt != nil {
			results[i].EventID = evt.ID()
		}
		results[i].Err = d.Dispatch(ctx, evt)
	}

	return results
}

// Config returns a copy of the active configuration.
func (d *EventDispatcher) Config() DispatcherConfig {
	return d.cfg
}
