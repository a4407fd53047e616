package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/workbridge/backend/internal/middleware"
	"github.com/workbridge/backend/internal/models"
)

// ContestService is the contest-entry surface the handler needs.
type ContestService interface {
	SubmitEntry(ctx context.Context, contestID, actorID uuid.UUID) (*models.ContestEntry, error)
	RejectEntry(ctx context.Context, entryID, actorID uuid.UUID) error
	AwardEntry(ctx context.Context, entryID, actorID uuid.UUID) (*models.Engagement, error)
	ListEntries(ctx context.Context, contestID uuid.UUID) ([]*models.ContestEntry, error)
}

// ContestHandler serves the contest-entry sub-workflow endpoints.
type ContestHandler struct {
	Contests ContestService
	Logger   *slog.Logger
}

// --- POST /api/v1/contests/{id}/entries ---

func (h *ContestHandler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid contest id"}`, http.StatusBadRequest)
		return
	}
	entry, err := h.Contests.SubmitEntry(r.Context(), id, middleware.ActorFromCtx(r.Context()))
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// --- GET /api/v1/contests/{id}/entries ---

func (h *ContestHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid contest id"}`, http.StatusBadRequest)
		return
	}
	list, err := h.Contests.ListEntries(r.Context(), id)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- POST /api/v1/contest-entries/{id}/award ---

func (h *ContestHandler) AwardEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid entry id"}`, http.StatusBadRequest)
		return
	}
	eng, err := h.Contests.AwardEntry(r.Context(), id, middleware.ActorFromCtx(r.Context()))
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, eng)
}

// --- POST /api/v1/contest-entries/{id}/reject ---

func (h *ContestHandler) RejectEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid entry id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Contests.RejectEntry(r.Context(), id, middleware.ActorFromCtx(r.Context())); err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"entry_id": id.String(), "status": models.ContestEntryStatusRejected})
}
