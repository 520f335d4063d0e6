package contracts

import "fmt"

// EventTypeIntakeCompleted tags events published when an intake form is completed.
const EventTypeIntakeCompleted = "IntakeCompleted"

// IntakeCompletedPayload is the typed shape of an IntakeCompleted event's payload.
type IntakeCompletedPayload struct {
	FormID      string
	SubmittedBy string
	Answers     map[string]any
}

// NewIntakeCompleted wraps a typed completion payload into a DomainEvent.
func NewIntakeCompleted(aggregateID string, p IntakeCompletedPayload) *DomainEvent {
	return NewDomainEvent(EventTypeIntakeCompleted, aggregateID, map[string]any{
		"formId":      p.FormID,
		"submittedBy": p.SubmittedBy,
		"answers":     p.Answers,
	})
}

// IntakeCompletedFrom projects the typed payload view over a generically
// decoded event. Fields absent from the payload map are left zero; callers
// needing unknown keys fall back to DomainEvent.Payload.
func IntakeCompletedFrom(evt *DomainEvent) (IntakeCompletedPayload, error) {
	if evt.Type() != EventTypeIntakeCompleted {
		return IntakeCompletedPayload{}, fmt.Errorf("%w: got %q, want %q",
			ErrWrongEventType, evt.Type(), EventTypeIntakeCompleted)
	}

	var p IntakeCompletedPayload
	if v, ok := evt.PayloadValue("formId"); ok {
		p.FormID, _ = v.(string)
	}
	if v, ok := evt.PayloadValue("submittedBy"); ok {
		p.SubmittedBy, _ = v.(string)
	}
	if v, ok := evt.PayloadValue("answers"); ok {
		if m, ok := v.(map[string]any); ok {
			p.Answers = m
		}
	}
	return p, nil
}
