package messaging

import (
	"context"

	"github.com/intakehub/intake-go/contracts"
)

// IntakeCompletion is one completed form for batch dispatch.
type IntakeCompletion struct {
	AggregateID string
	Payload     contracts.IntakeCompletedPayload
}

// IntakeCompletedDispatcher is a thin facade over EventDispatcher,
// preconfigured for IntakeCompleted events. It accepts the typed payload and
// wraps it into a DomainEvent before delegating; it adds no behavior beyond
// that.
type IntakeCompletedDispatcher struct {
	dispatcher *EventDispatcher
}

// NewIntakeCompletedDispatcher creates the facade. Options apply to the
// underlying dispatcher; the exchange defaults to the stock intake topology.
func NewIntakeCompletedDispatcher(provider ChannelProvider, options ...DispatcherOption) *IntakeCompletedDispatcher {
	return &IntakeCompletedDispatcher{
		dispatcher: NewEventDispatcher(provider, options...),
	}
}

// Initialize asserts the exchange.
func (d *IntakeCompletedDispatcher) Initialize(ctx context.Context) error {
	return d.dispatcher.Initialize(ctx)
}

// Dispatch wraps the payload into an IntakeCompleted event and publishes it.
func (d *IntakeCompletedDispatcher) Dispatch(ctx context.Context, aggregateID string, payload contracts.IntakeCompletedPayload) error {
	return d.dispatcher.Dispatch(ctx, contracts.NewIntakeCompleted(aggregateID, payload))
}

// DispatchBatch publishes completions strictly in order with per-item results.
func (d *IntakeCompletedDispatcher) DispatchBatch(ctx context.Context, completions []IntakeCompletion) []DispatchResult {
	events := make([]*contracts.DomainEvent, len(completions))
	for i, c := range completions {
		events[i] = contracts.NewIntakeCompleted(c.AggregateID, c.Payload)
	}
	return d.dispatcher.DispatchBatch(ctx, events)
}

// Config returns a copy of the underlying dispatcher configuration.
func (d *IntakeCompletedDispatcher) Config() DispatcherConfig {
	return d.dispatcher.Config()
}
