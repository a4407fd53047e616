package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/middleware"
	"github.com/workbridge/backend/internal/models"
)

// WalletReader is the wallet surface the handler needs.
type WalletReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListEntriesByWallet(ctx context.Context, walletID uuid.UUID) ([]*models.WalletLedgerEntry, error)
}

// BalanceVerifier checks the balance/ledger invariant on read.
type BalanceVerifier interface {
	VerifyBalance(ctx context.Context, walletID uuid.UUID) error
}

// WalletHandler serves the authenticated user's wallet and ledger.
type WalletHandler struct {
	Wallets  WalletReader
	Verifier BalanceVerifier
	Logger   *slog.Logger
}

// --- GET /api/v1/wallets/me ---

func (h *WalletHandler) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	wal, err := h.Wallets.GetByUserID(r.Context(), actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no wallet for user"})
			return
		}
		writeFault(w, h.Logger, err)
		return
	}
	if err := h.Verifier.VerifyBalance(r.Context(), wal.ID); err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, wal)
}

// --- GET /api/v1/wallets/me/ledger ---

func (h *WalletHandler) ListMyLedger(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	wal, err := h.Wallets.GetByUserID(r.Context(), actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no wallet for user"})
			return
		}
		writeFault(w, h.Logger, err)
		return
	}
	entries, err := h.Wallets.ListEntriesByWallet(r.Context(), wal.ID)
	if err != nil {
		writeFault(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
