package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/handover"
	"github.com/workbridge/backend/internal/middleware"
	"github.com/workbridge/backend/internal/models"
)

// AgreementService is the agreement surface the handler needs.
type AgreementService interface {
	SignAsClient(ctx context.Context, engagementID, actorID uuid.UUID) (*models.Agreement, error)
	SignAsWorker(ctx context.Context, engagementID, actorID uuid.UUID) (*models.Agreement, error)
	Get(ctx context.Context, engagementID uuid.UUID) (*models.Agreement, error)
}

// HandoverService is the handover surface the handler needs.
type HandoverService interface {
	Get(ctx context.Context, engagementID uuid.UUID) (*models.Handover, error)
	Submit(ctx context.Context, engagementID, actorID uuid.UUID, files []handover.FileInput) (*models.Handover, error)
	Accept(ctx context.Context, engagementID, actorID uuid.UUID) error
	Dispute(ctx context.Context, engagementID, actorID uuid.UUID) error
}

// RatingService is the rating surface the handler needs.
type RatingService interface {
	Submit(ctx context.Context, engagementID, actorID uuid.UUID, stars int, text string) (*models.Rating, error)
	ListForEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Rating, error)
}

// EngagementReader resolves engagements for display.
type EngagementReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
	ListByParty(ctx context.Context, userID uuid.UUID) ([]*models.Engagement, error)
}

// WorkflowHandler serves the engagement settlement workflow endpoints.
type WorkflowHandler struct {
	Agreements  AgreementService
	Handovers   HandoverService
	Ratings     RatingService
	Engagements EngagementReader
	Logger      *slog.Logger
}

// --- GET /api/v1/engagements/{id} ---

func (h *WorkflowHandler) GetEngagement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	eng, err := h.Engagements.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "engagement not found"})
			return
		}
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

// --- GET /api/v1/engagements ---

func (h *WorkflowHandler) ListEngagements(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	list, err := h.Engagements.ListByParty(r.Context(), actor)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- POST /api/v1/engagements/{id}/agreement/sign-client | sign-worker ---

func (h *WorkflowHandler) SignAsClient(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, h.Agreements.SignAsClient)
}

func (h *WorkflowHandler) SignAsWorker(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, h.Agreements.SignAsWorker)
}

func (h *WorkflowHandler) sign(w http.ResponseWriter, r *http.Request, signFn func(context.Context, uuid.UUID, uuid.UUID) (*models.Agreement, error)) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	a, err := signFn(r.Context(), id, middleware.ActorFromCtx(r.Context()))
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- GET /api/v1/engagements/{id}/agreement ---

func (h *WorkflowHandler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	a, err := h.Agreements.Get(r.Context(), id)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	if a == nil {
		// Absence is not an error: nobody has signed yet.
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- POST /api/v1/engagements/{id}/handover ---

type submitHandoverRequest struct {
	Files []handover.FileInput `json:"files"`
}

func (h *WorkflowHandler) SubmitHandover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	var req submitHandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	hd, err := h.Handovers.Submit(r.Context(), id, middleware.ActorFromCtx(r.Context()), req.Files)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hd)
}

// --- GET /api/v1/engagements/{id}/handover ---

func (h *WorkflowHandler) GetHandover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	hd, err := h.Handovers.Get(r.Context(), id)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hd)
}

// --- POST /api/v1/engagements/{id}/handover/accept ---

func (h *WorkflowHandler) AcceptHandover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Handovers.Accept(r.Context(), id, middleware.ActorFromCtx(r.Context())); err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"engagement_id": id.String(), "status": models.HandoverStatusAccepted})
}

// --- POST /api/v1/engagements/{id}/handover/dispute ---

func (h *WorkflowHandler) DisputeHandover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Handovers.Dispute(r.Context(), id, middleware.ActorFromCtx(r.Context())); err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"engagement_id": id.String(), "status": models.HandoverStatusDisputed})
}

// --- POST /api/v1/engagements/{id}/ratings ---

type submitRatingRequest struct {
	Stars      int    `json:"stars"`
	ReviewText string `json:"review_text"`
}

func (h *WorkflowHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	var req submitRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	rt, err := h.Ratings.Submit(r.Context(), id, middleware.ActorFromCtx(r.Context()), req.Stars, req.ReviewText)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

// --- GET /api/v1/engagements/{id}/ratings ---

func (h *WorkflowHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid engagement id"}`, http.StatusBadRequest)
		return
	}
	list, err := h.Ratings.ListForEngagement(r.Context(), id)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
