package store

import (
	"context"
	"time"
)

// CompletionReceipt records that a completion event was processed by the
// worker. The event id is the primary key, so broker redeliveries collapse
// into a single row.
type CompletionReceipt struct {
	EventID     string
	FormID      string
	SubmittedBy string
	ProcessedAt time.Time
}

// ReceiptRepository persists completion receipts.
type ReceiptRepository struct {
	pool *Pool
}

func NewReceiptRepository(pool *Pool) *ReceiptRepository {
	return &ReceiptRepository{pool: pool}
}

// Record inserts a receipt. Returns false when the event was already
// recorded, which makes reprocessing on redelivery detectable and cheap.
func (r *ReceiptRepository) Record(ctx context.Context, eventID, formID, submittedBy string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO completion_receipts (event_id, form_id, submitted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, formID, submittedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByForm returns the receipts recorded for one form, oldest first.
func (r *ReceiptRepository) ListByForm(ctx context.Context, formID string) ([]CompletionReceipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, form_id, submitted_by, processed_at
		FROM completion_receipts
		WHERE form_id = $1
		ORDER BY processed_at ASC
	`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []CompletionReceipt
	for rows.Next() {
		var receipt CompletionReceipt
		if err := rows.Scan(&receipt.EventID, &receipt.FormID, &receipt.SubmittedBy, &receipt.ProcessedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return receipts, nil
}
