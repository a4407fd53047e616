package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// Store is the minimal wallet repository interface for the service.
type Store interface {
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error)
	AddFunds(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amountCents int64) (int64, error)
	RemoveFunds(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amountCents int64) (int64, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e *models.WalletLedgerEntry) error
	BalanceWithLedgerSum(ctx context.Context, walletID uuid.UUID) (balance, sum int64, err error)
	SumLedger(ctx context.Context, walletID uuid.UUID) (int64, error)
	SetBalance(ctx context.Context, walletID uuid.UUID, balanceCents int64) error
}

// Service moves funds. Every balance change locks the wallet row, updates
// the materialized balance, and appends a ledger entry as one unit inside
// the caller's transaction, so balance and ledger sum cannot diverge on a
// partial failure.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Credit adds amountCents to the user's wallet and appends a credit ledger
// entry. A missing wallet is a data-integrity error, never auto-created.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, engagementID *uuid.UUID, amountCents int64, reason string) (*models.WalletLedgerEntry, error) {
	if amountCents <= 0 {
		return nil, faults.Validation("credit amount must be positive, got %d", amountCents)
	}
	w, err := s.store.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.NotFound("no wallet for user %s", userID)
		}
		return nil, err
	}
	newBalance, err := s.store.AddFunds(ctx, tx, w.ID, amountCents)
	if err != nil {
		return nil, err
	}
	entry := &models.WalletLedgerEntry{
		ID:                uuid.New(),
		WalletID:          w.ID,
		EntryType:         models.LedgerEntryCredit,
		AmountCents:       amountCents,
		Reason:            reason,
		EngagementID:      engagementID,
		BalanceAfterCents: newBalance,
	}
	if err := s.store.InsertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit removes amountCents from the user's wallet and appends a debit
// ledger entry. Fails Validation when the balance does not cover it.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, engagementID *uuid.UUID, amountCents int64, reason string) (*models.WalletLedgerEntry, error) {
	if amountCents <= 0 {
		return nil, faults.Validation("debit amount must be positive, got %d", amountCents)
	}
	w, err := s.store.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.NotFound("no wallet for user %s", userID)
		}
		return nil, err
	}
	newBalance, err := s.store.RemoveFunds(ctx, tx, w.ID, amountCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.Validation("insufficient funds in wallet %s", w.ID)
		}
		return nil, err
	}
	entry := &models.WalletLedgerEntry{
		ID:                uuid.New(),
		WalletID:          w.ID,
		EntryType:         models.LedgerEntryDebit,
		AmountCents:       amountCents,
		Reason:            reason,
		EngagementID:      engagementID,
		BalanceAfterCents: newBalance,
	}
	if err := s.store.InsertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// VerifyBalance recomputes the ledger sum and compares it to the
// materialized balance, reading both in one snapshot so a credit committing
// mid-check cannot fake a mismatch. A real mismatch is the fatal class: the
// error wraps faults.ErrLedgerDivergence so callers halt and alert
// operators.
func (s *Service) VerifyBalance(ctx context.Context, walletID uuid.UUID) error {
	balance, sum, err := s.store.BalanceWithLedgerSum(ctx, walletID)
	if err != nil {
		return err
	}
	if sum != balance {
		return fmt.Errorf("%w: wallet %s balance=%d ledger_sum=%d",
			faults.ErrLedgerDivergence, walletID, balance, sum)
	}
	return nil
}

// RebuildBalance overwrites the materialized balance with the ledger sum.
// Operator tooling only; the workflow itself never auto-repairs.
func (s *Service) RebuildBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	sum, err := s.store.SumLedger(ctx, walletID)
	if err != nil {
		return 0, err
	}
	if err := s.store.SetBalance(ctx, walletID, sum); err != nil {
		return 0, err
	}
	return sum, nil
}
