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

// ConsumerConfig configures the queue an EventConsumer binds and reads.
type ConsumerConfig struct {
	QueueName     string
	Exchange      string
	RoutingKeys   []string
	Durable       bool
	PrefetchCount int
	// QueueArgs are passed to the queue declaration, e.g.
	// rabbitmq.DeadLetterArgs for broker-side dead-lettering.
	QueueArgs amqp.Table
}

// DefaultConsumerConfig returns the stock intake queue settings. Note that
// the default binding form.* does not match intake.completed, the key derived
// for IntakeCompleted; deployments that want that event on this queue must
// bind intake.* (or intake.completed) as well. See MatchTopic.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		QueueName:     "intake_completed_queue",
		Exchange:      "intake_events",
		RoutingKeys:   []string{"form.*"},
		Durable:       true,
		PrefetchCount: 10,
	}
}

// ConsumerState is the consumer lifecycle state.
type ConsumerState int

const (
	StateUnbound ConsumerState = iota
	StateInitialized
	StateConsuming
	StateStopped
)

// String returns the state name for logging.
func (s ConsumerState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateInitialized:
		return "initialized"
	case StateConsuming:
		return "consuming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventConsumer binds a durable queue to the exchange and dispatches decoded
// events to registered handlers by event type under manual acknowledgment.
type EventConsumer struct {
	provider ChannelProvider
	cfg      ConsumerConfig
	logger   *slog.Logger
	metrics  MetricsCollector

	mu    sync.Mutex
	state ConsumerState
	ch    Channel

	hmu      sync.RWMutex
	handlers map[string][]EventHandler
}

// ConsumerOption configures the EventConsumer.
type ConsumerOption func(*EventConsumer)

// WithConsumerConfig overrides the default queue configuration.
func WithConsumerConfig(cfg ConsumerConfig) ConsumerOption {
	return func(c *EventConsumer) {
		c.cfg = cfg
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *EventConsumer) {
		c.logger = logger
	}
}

// WithConsumerMetrics sets the metrics collector.
func WithConsumerMetrics(metrics MetricsCollector) ConsumerOption {
	return func(c *EventConsumer) {
		c.metrics = metrics
	}
}

// NewEventConsumer creates a consumer drawing a dedicated channel from the
// given provider.
func NewEventConsumer(provider ChannelProvider, options ...ConsumerOption) *EventConsumer {
	c := &EventConsumer{
		provider: provider,
		cfg:      DefaultConsumerConfig(),
		logger:   slog.Default(),
		metrics:  NoOpMetricsCollector{},
		handlers: make(map[string][]EventHandler),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// On registers a handler for an event type. Every registered handler for a
// type runs for each matching message. Having no handlers for a type is
// legal, and registration after Start takes effect for subsequent
// deliveries.
func (c *EventConsumer) On(eventType string, handler EventHandler) {
	if eventType == "" || handler == nil {
		return
	}

	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// OnFunc registers a plain function as a handler.
func (c *EventConsumer) OnFunc(eventType string, fn EventHandlerFunc) {
	c.On(eventType, fn)
}

// Initialize creates the dedicated channel, applies the prefetch bound,
// declares the queue, and binds it once per configured routing-key pattern.
// Idempotent; rebinding an existing binding is a broker no-op.
func (c *EventConsumer) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked(ctx)
}

func (c *EventConsumer) initLocked(ctx context.Context) error {
	switch c.state {
	case StateStopped:
		return ErrConsumerStopped
	case StateInitialized, StateConsuming:
		return nil
	}

	ch, err := c.provider.CreateChannel(ctx)
	if err != nil {
		return err
	}

	if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return c.consumerErr("set qos", err)
	}

	if _, err := ch.QueueDeclare(c.cfg.QueueName, c.cfg.Durable, false, false, false, c.cfg.QueueArgs); err != nil {
		_ = ch.Close()
		return c.consumerErr("declare queue", err)
	}

	for _, key := range c.cfg.RoutingKeys {
		if err := ch.QueueBind(c.cfg.QueueName, key, c.cfg.Exchange, false, nil); err != nil {
			_ = ch.Close()
			return c.consumerErr("bind "+key, err)
		}
	}

	c.ch = ch
	c.state = StateInitialized

	c.logger.Info("consumer initialized",
		"queue", c.cfg.QueueName,
		"exchange", c.cfg.Exchange,
		"routingKeys", c.cfg.RoutingKeys,
		"prefetchCount", c.cfg.PrefetchCount,
	)
	return nil
}

// Start begins consumption with manual acknowledgment, initializing first if
// needed. Starting an already-consuming instance is rejected: a second
// consume stream on the same channel would split deliveries between the two.
func (c *EventConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateStopped:
		return ErrConsumerStopped
	case StateConsuming:
		return ErrConsumerStarted
	}

	if err := c.initLocked(ctx); err != nil {
		return err
	}

	deliveries, err := c.ch.Consume(c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return c.consumerErr("consume", err)
	}

	c.state = StateConsuming
	go c.receive(ctx, deliveries)

	c.logger.Info("consumer started", "queue", c.cfg.QueueName)
	return nil
}

// receive pulls deliveries until the channel closes or the context ends.
// Handling overlap across messages is bounded by the prefetch count, which
// is how many unacknowledged deliveries the broker will have in flight here.
func (c *EventConsumer) receive(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("receive loop stopping", "queue", c.cfg.QueueName, "reason", ctx.Err())
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Debug("delivery channel closed", "queue", c.cfg.QueueName)
				return
			}
			c.process(ctx, delivery)
		}
	}
}

// process handles one delivery: decode, fan out to handlers, then ack on
// success or nack with requeue on failure. A decode failure counts as a
// handling failure. No backoff and no retry cap here: redelivery control is
// broker policy.
func (c *EventConsumer) process(ctx context.Context, delivery amqp.Delivery) {
	start := time.Now()

	evt, err := contracts.Decode(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode message",
			"queue", c.cfg.QueueName,
			"messageId", delivery.MessageId,
			"error", err,
		)
		c.metrics.RecordConsume("", c.cfg.QueueName, time.Since(start), false)
		c.nack(delivery)
		return
	}

	handlers := c.handlersFor(evt.Type())
	if len(handlers) == 0 {
		// Ack unhandled types so an event nobody cares about cannot cause
		// a redelivery storm.
		c.logger.Debug("no handlers for event type",
			"eventType", evt.Type(),
			"eventId", evt.ID(),
		)
		c.metrics.RecordConsume(evt.Type(), c.cfg.QueueName, time.Since(start), true)
		c.ack(delivery)
		return
	}

	if err := c.invoke(ctx, handlers, evt); err != nil {
		c.logger.Error("event handling failed",
			"eventType", evt.Type(),
			"eventId", evt.ID(),
			"queue", c.cfg.QueueName,
			"error", err,
		)
		c.metrics.RecordConsume(evt.Type(), c.cfg.QueueName, time.Since(start), false)
		c.nack(delivery)
		return
	}

	c.metrics.RecordConsume(evt.Type(), c.cfg.QueueName, time.Since(start), true)
	c.ack(delivery)

	c.logger.Debug("event handled",
		"eventType", evt.Type(),
		"eventId", evt.ID(),
		"handlerCount", len(handlers),
	)
}

// invoke runs all handlers concurrently and waits for every one to finish.
// Success requires all of them to complete without error.
func (c *EventConsumer) invoke(ctx context.Context, handlers []EventHandler, evt *contracts.DomainEvent) error {
	var wg sync.WaitGroup
	errChan := make(chan error, len(handlers))

	for _, h := range handlers {
		wg.Add(1)
		go func(handler EventHandler) {
			defer wg.Done()
			if err := handler.Handle(ctx, evt); err != nil {
				errChan <- err
			}
		}(h)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d handlers failed: %v", len(errs), len(handlers), errs)
	}
	return nil
}

func (c *EventConsumer) consumerErr(op string, err error) error {
	return &ConsumerError{
		Op:        op,
		Queue:     c.cfg.QueueName,
		Err:       err,
		Timestamp: time.Now(),
	}
}

func (c *EventConsumer) handlersFor(eventType string) []EventHandler {
	c.hmu.RLock()
	defer c.hmu.RUnlock()

	registered := c.handlers[eventType]
	if len(registered) == 0 {
		return nil
	}
	handlers := make([]EventHandler, len(registered))
	copy(handlers, registered)
	return handlers
}

func (c *EventConsumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message",
			"deliveryTag", delivery.DeliveryTag,
			"error", err,
		)
	}
}

func (c *EventConsumer) nack(delivery amqp.Delivery) {
	if err := delivery.Nack(false, true); err != nil {
		c.logger.Error("failed to nack message",
			"deliveryTag", delivery.DeliveryTag,
			"error", err,
		)
	}
}

// Stop closes the dedicated channel. Idempotent and safe on a consumer that
// was never started. Stopped is terminal for this instance; construct a new
// consumer to resume.
func (c *EventConsumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return nil
	}
	c.state = StateStopped

	if c.ch == nil {
		return nil
	}
	ch := c.ch
	c.ch = nil

	if ch.IsClosed() {
		return nil
	}
	if err := ch.Close(); err != nil {
		return c.consumerErr("close channel", err)
	}

	c.logger.Info("consumer stopped", "queue", c.cfg.QueueName)
	return nil
}

// State returns the current lifecycle state.
func (c *EventConsumer) State() ConsumerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns a copy of the active configuration.
func (c *EventConsumer) Config() ConsumerConfig {
	cfg := c.cfg
	cfg.RoutingKeys = append([]string(nil), c.cfg.RoutingKeys...)
	return cfg
}
