package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrFormNotFound is returned when no form matches the given id.
var ErrFormNotFound = errors.New("form not found")

// Form statuses. A form moves from draft to completed exactly once.
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)

// Form is an intake form row. Answers is stored as JSONB.
type Form struct {
	ID          uuid.UUID
	Title       string
	Answers     map[string]any
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// FormRepository provides CRUD access to intake forms.
type FormRepository struct {
	pool *Pool
}

func NewFormRepository(pool *Pool) *FormRepository {
	return &FormRepository{pool: pool}
}

const formColumns = `id, title, answers, status, created_at, updated_at, completed_at`

// Create inserts a draft form and returns it with generated fields filled in.
func (r *FormRepository) Create(ctx context.Context, title string, answers map[string]any) (Form, error) {
	if answers == nil {
		answers = map[string]any{}
	}

	var form Form
	err := r.pool.QueryRow(ctx, `
		INSERT INTO forms (title, answers, status)
		VALUES ($1, $2, $3)
		RETURNING `+formColumns+`
	`, title, answers, StatusDraft).Scan(
		&form.ID,
		&form.Title,
		&form.Answers,
		&form.Status,
		&form.CreatedAt,
		&form.UpdatedAt,
		&form.CompletedAt,
	)
	if err != nil {
		return Form{}, err
	}
	return form, nil
}

// GetByID fetches one form. Returns ErrFormNotFound when the id is unknown.
func (r *FormRepository) GetByID(ctx context.Context, id uuid.UUID) (Form, error) {
	var form Form
	err := r.pool.QueryRow(ctx, `
		SELECT `+formColumns+`
		FROM forms
		WHERE id = $1
	`, id).Scan(
		&form.ID,
		&form.Title,
		&form.Answers,
		&form.Status,
		&form.CreatedAt,
		&form.UpdatedAt,
		&form.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, ErrFormNotFound
	}
	if err != nil {
		return Form{}, err
	}
	return form, nil
}

// List returns the most recently updated forms, newest first.
func (r *FormRepository) List(ctx context.Context, limit int) ([]Form, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+formColumns+`
		FROM forms
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []Form
	for rows.Next() {
		var form Form
		if err := rows.Scan(
			&form.ID,
			&form.Title,
			&form.Answers,
			&form.Status,
			&form.CreatedAt,
			&form.UpdatedAt,
			&form.CompletedAt,
		); err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return forms, nil
}

// Update replaces the title and answers of a draft form.
func (r *FormRepository) Update(ctx context.Context, id uuid.UUID, title string, answers map[string]any) (Form, error) {
	if answers == nil {
		answers = map[string]any{}
	}

	var form Form
	err := r.pool.QueryRow(ctx, `
		UPDATE forms
		SET title = $2,
			answers = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+formColumns+`
	`, id, title, answers).Scan(
		&form.ID,
		&form.Title,
		&form.Answers,
		&form.Status,
		&form.CreatedAt,
		&form.UpdatedAt,
		&form.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, ErrFormNotFound
	}
	if err != nil {
		return Form{}, err
	}
	return form, nil
}

// Delete removes a form. Returns ErrFormNotFound when nothing was deleted.
func (r *FormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFormNotFound
	}
	return nil
}

// MarkCompleted transitions a form to completed and stamps completed_at. The
// transition is guarded in SQL so a form completes at most once; completing
// an already-completed form returns the row unchanged.
func (r *FormRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (Form, error) {
	var form Form
	err := r.pool.QueryRow(ctx, `
		UPDATE forms
		SET status = $2,
			completed_at = COALESCE(completed_at, now()),
			updated_at = now()
		WHERE id = $1
		RETURNING `+formColumns+`
	`, id, StatusCompleted).Scan(
		&form.ID,
		&form.Title,
		&form.Answers,
		&form.Status,
		&form.CreatedAt,
		&form.UpdatedAt,
		&form.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, ErrFormNotFound
	}
	if err != nil {
		return Form{}, err
	}
	return form, nil
}
