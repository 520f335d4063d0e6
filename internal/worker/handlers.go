// Package worker consumes completion events and records processing receipts.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intakehub/intake-go/contracts"
)

// ReceiptRecorder persists one receipt per processed event.
type ReceiptRecorder interface {
	Record(ctx context.Context, eventID, formID, submittedBy string) (bool, error)
}

// ReceiptHandler records a completion receipt for every IntakeCompleted
// event. Receipts are keyed by event id, so broker redeliveries of the same
// event are absorbed without side effects.
type ReceiptHandler struct {
	receipts ReceiptRecorder
	logger   *slog.Logger
}

func NewReceiptHandler(receipts ReceiptRecorder, logger *slog.Logger) *ReceiptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptHandler{receipts: receipts, logger: logger}
}

func (h *ReceiptHandler) Handle(ctx context.Context, evt *contracts.DomainEvent) error {
	payload, err := contracts.IntakeCompletedFrom(evt)
	if err != nil {
		return fmt.Errorf("read completion payload: %w", err)
	}

	recorded, err := h.receipts.Record(ctx, evt.ID(), payload.FormID, payload.SubmittedBy)
	if err != nil {
		return fmt.Errorf("record receipt for event %s: %w", evt.ID(), err)
	}
	if !recorded {
		h.logger.Info("duplicate delivery absorbed", "eventId", evt.ID(), "formId", payload.FormID)
		return nil
	}

	h.logger.Info("completion recorded",
		"eventId", evt.ID(),
		"formId", payload.FormID,
		"submittedBy", payload.SubmittedBy,
	)
	return nil
}

// NotifyHandler emits a notification log line per completion. Stands in for
// an outbound notification integration; runs alongside ReceiptHandler on the
// same event type.
type NotifyHandler struct {
	logger *slog.Logger
}

func NewNotifyHandler(logger *slog.Logger) *NotifyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyHandler{logger: logger}
}

func (h *NotifyHandler) Handle(ctx context.Context, evt *contracts.DomainEvent) error {
	payload, err := contracts.IntakeCompletedFrom(evt)
	if err != nil {
		return fmt.Errorf("read completion payload: %w", err)
	}

	h.logger.Info("intake completed",
		"formId", payload.FormID,
		"submittedBy", payload.SubmittedBy,
		"answerCount", len(payload.Answers),
		"occurredOn", evt.OccurredOn(),
	)
	return nil
}
