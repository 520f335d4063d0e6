package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/intakehub/intake-go/contracts"
	"github.com/intakehub/intake-go/internal/store"
)

// FormStore is the persistence surface the handlers use.
type FormStore interface {
	Create(ctx context.Context, title string, answers map[string]any) (store.Form, error)
	GetByID(ctx context.Context, id uuid.UUID) (store.Form, error)
	List(ctx context.Context, limit int) ([]store.Form, error)
	Update(ctx context.Context, id uuid.UUID, title string, answers map[string]any) (store.Form, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) (store.Form, error)
}

// FormCache fronts reads. A nil cache disables caching.
type FormCache interface {
	Get(ctx context.Context, id uuid.UUID) (store.Form, error)
	Set(ctx context.Context, form store.Form) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// CompletionPublisher publishes the completion event for a form.
type CompletionPublisher interface {
	Dispatch(ctx context.Context, aggregateID string, payload contracts.IntakeCompletedPayload) error
}

// FormHandler implements the /forms endpoints.
type FormHandler struct {
	forms     FormStore
	cache     FormCache
	publisher CompletionPublisher
	logger    *slog.Logger
}

func NewFormHandler(forms FormStore, cache FormCache, publisher CompletionPublisher, logger *slog.Logger) *FormHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormHandler{forms: forms, cache: cache, publisher: publisher, logger: logger}
}

// FormRequest is the body for create and update.
type FormRequest struct {
	Title   string         `json:"title" validate:"required,min=1,max=255"`
	Answers map[string]any `json:"answers"`
}

// CompleteRequest is the body for POST /forms/{id}/complete.
type CompleteRequest struct {
	SubmittedBy string `json:"submittedBy" validate:"required,min=1,max=255"`
}

// FormResponse is the wire shape of a form.
type FormResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Answers     map[string]any `json:"answers"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

func toResponse(form store.Form) FormResponse {
	return FormResponse{
		ID:          form.ID.String(),
		Title:       form.Title,
		Answers:     form.Answers,
		Status:      form.Status,
		CreatedAt:   form.CreatedAt,
		UpdatedAt:   form.UpdatedAt,
		CompletedAt: form.CompletedAt,
	}
}

// Create handles POST /forms.
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := ValidateRequest[FormRequest](w, r)
	if !ok {
		return
	}

	form, err := h.forms.Create(r.Context(), req.Title, req.Answers)
	if err != nil {
		h.logger.Error("create form failed", "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to create form")
		return
	}

	JSON(w, http.StatusCreated, toResponse(form))
}

// Get handles GET /forms/{id} with a read-through cache.
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.formID(w, r)
	if !ok {
		return
	}

	if h.cache != nil {
		if form, err := h.cache.Get(r.Context(), id); err == nil {
			JSON(w, http.StatusOK, toResponse(form))
			return
		}
	}

	form, err := h.forms.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrFormNotFound) {
		JSONError(w, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		h.logger.Error("get form failed", "formId", id, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to load form")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), form); err != nil {
			h.logger.Warn("cache fill failed", "formId", id, "error", err)
		}
	}

	JSON(w, http.StatusOK, toResponse(form))
}

// List handles GET /forms?limit=n.
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			JSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	forms, err := h.forms.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list forms failed", "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to list forms")
		return
	}

	out := make([]FormResponse, 0, len(forms))
	for _, form := range forms {
		out = append(out, toResponse(form))
	}
	JSON(w, http.StatusOK, map[string]any{"forms": out})
}

// Update handles PUT /forms/{id}.
func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.formID(w, r)
	if !ok {
		return
	}
	req, ok := ValidateRequest[FormRequest](w, r)
	if !ok {
		return
	}

	form, err := h.forms.Update(r.Context(), id, req.Title, req.Answers)
	if errors.Is(err, store.ErrFormNotFound) {
		JSONError(w, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		h.logger.Error("update form failed", "formId", id, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to update form")
		return
	}

	h.invalidate(r.Context(), id)
	JSON(w, http.StatusOK, toResponse(form))
}

// Delete handles DELETE /forms/{id}.
func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.formID(w, r)
	if !ok {
		return
	}

	err := h.forms.Delete(r.Context(), id)
	if errors.Is(err, store.ErrFormNotFound) {
		JSONError(w, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		h.logger.Error("delete form failed", "formId", id, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to delete form")
		return
	}

	h.invalidate(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /forms/{id}/complete. The form transitions to
// completed, then the IntakeCompleted event is published. A publish failure
// after the transition returns 502; the completion stands, and calling
// complete again republishes. MarkCompleted keeps the original completed_at
// on repeat calls, so the retry is safe.
func (h *FormHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.formID(w, r)
	if !ok {
		return
	}
	req, ok := ValidateRequest[CompleteRequest](w, r)
	if !ok {
		return
	}

	form, err := h.forms.MarkCompleted(r.Context(), id)
	if errors.Is(err, store.ErrFormNotFound) {
		JSONError(w, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		h.logger.Error("mark completed failed", "formId", id, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to complete form")
		return
	}
	h.invalidate(r.Context(), id)

	err = h.publisher.Dispatch(r.Context(), form.ID.String(), contracts.IntakeCompletedPayload{
		FormID:      form.ID.String(),
		SubmittedBy: req.SubmittedBy,
		Answers:     form.Answers,
	})
	if err != nil {
		h.logger.Error("publish completion event failed", "formId", id, "error", err)
		JSONError(w, http.StatusBadGateway, "form completed but event publish failed")
		return
	}

	JSON(w, http.StatusOK, toResponse(form))
}

func (h *FormHandler) formID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *FormHandler) invalidate(ctx context.Context, id uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("cache invalidation failed", "formId", id, "error", err)
	}
}
