package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainEvent describes something that happened to a business entity.
// All fields are fixed at construction; EventID and OccurredOn are always
// assigned by the constructor, never supplied by the caller.
type DomainEvent struct {
	eventID     string
	eventType   string
	aggregateID string
	occurredOn  time.Time
	payload     map[string]any
}

// NewDomainEvent creates an event with a generated ID and the current UTC
// time. The payload map is copied so later caller mutations cannot leak into
// the event. A nil payload is treated as empty.
func NewDomainEvent(eventType, aggregateID string, payload map[string]any) *DomainEvent {
	return &DomainEvent{
		eventID:     uuid.New().String(),
		eventType:   eventType,
		aggregateID: aggregateID,
		occurredOn:  time.Now().UTC(),
		payload:     copyPayload(payload),
	}
}

// ID returns the globally unique event identifier.
func (e *DomainEvent) ID() string { return e.eventID }

// Type returns the event's semantic kind, e.g. "IntakeCompleted".
func (e *DomainEvent) Type() string { return e.eventType }

// AggregateID returns the identifier of the entity the event concerns.
func (e *DomainEvent) AggregateID() string { return e.aggregateID }

// OccurredOn returns the construction timestamp.
func (e *DomainEvent) OccurredOn() time.Time { return e.occurredOn }

// Payload returns a copy of the payload map.
func (e *DomainEvent) Payload() map[string]any { return copyPayload(e.payload) }

// PayloadValue retrieves a single payload field by key.
func (e *DomainEvent) PayloadValue(key string) (any, bool) {
	v, ok := e.payload[key]
	return v, ok
}

// wireEvent is the canonical JSON wire form exchanged as the message body.
type wireEvent struct {
	EventID     string         `json:"eventId"`
	EventType   string         `json:"eventType"`
	OccurredOn  string         `json:"occurredOn"`
	AggregateID string         `json:"aggregateId"`
	Payload     map[string]any `json:"payload"`
}

// Encode serializes the event to its canonical wire form.
func (e *DomainEvent) Encode() ([]byte, error) {
	w := wireEvent{
		EventID:     e.eventID,
		EventType:   e.eventType,
		OccurredOn:  e.occurredOn.UTC().Format(time.RFC3339),
		AggregateID: e.aggregateID,
		Payload:     e.payload,
	}
	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return body, nil
}

// Decode reconstructs a DomainEvent from its wire form. The result is
// generic: subtype-specific behavior is lost and payload fields are
// retrieved by key. A body without an eventType is rejected.
func Decode(body []byte) (*DomainEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if w.EventType == "" {
		return nil, fmt.Errorf("%w: missing eventType", ErrDecodeFailed)
	}

	occurredOn, err := time.Parse(time.RFC3339, w.OccurredOn)
	if err != nil {
		return nil, fmt.Errorf("%w: bad occurredOn %q: %v", ErrDecodeFailed, w.OccurredOn, err)
	}

	return &DomainEvent{
		eventID:     w.EventID,
		eventType:   w.EventType,
		aggregateID: w.AggregateID,
		occurredOn:  occurredOn,
		payload:     copyPayload(w.Payload),
	}, nil
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
