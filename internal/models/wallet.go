package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type enums.
const (
	LedgerEntryCredit = "credit"
	LedgerEntryDebit  = "debit"
)

// Ledger reason enums.
const (
	LedgerReasonEngagementRelease = "engagement_release"
	LedgerReasonDeposit           = "deposit"
	LedgerReasonWithdrawal        = "withdrawal"
	LedgerReasonBalanceRebuild    = "balance_rebuild"
)

// Wallet holds a user's funds. BalanceCents is a materialized cache of the
// wallet's ledger sum and is updated in the same transaction as every
// ledger append.
type Wallet struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WalletLedgerEntry is one append-only ledger row. Entries are never
// mutated or deleted.
type WalletLedgerEntry struct {
	ID                uuid.UUID  `json:"id"`
	WalletID          uuid.UUID  `json:"wallet_id"`
	EntryType         string     `json:"entry_type"`
	AmountCents       int64      `json:"amount_cents"`
	Reason            string     `json:"reason"`
	EngagementID      *uuid.UUID `json:"engagement_id,omitempty"`
	BalanceAfterCents int64      `json:"balance_after_cents"`
	CreatedAt         time.Time  `json:"created_at"`
}

// SignedAmount returns the delta this entry applies to its wallet's balance.
func (e *WalletLedgerEntry) SignedAmount() int64 {
	if e.EntryType == LedgerEntryDebit {
		return -e.AmountCents
	}
	return e.AmountCents
}
