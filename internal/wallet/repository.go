package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workbridge/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, balance_cents, currency, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.ID, &w.UserID, &w.BalanceCents, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetByUserIDForUpdate locks the wallet row for update. Call within a transaction.
func (r *Repository) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, balance_cents, currency, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&w.ID, &w.UserID, &w.BalanceCents, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// AddFunds adds amountCents to the wallet and returns the new balance.
func (r *Repository) AddFunds(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amountCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE id = $2
		RETURNING balance_cents
	`, amountCents, walletID).Scan(&newBalance)
	return newBalance, err
}

// RemoveFunds atomically deducts amountCents if the balance covers it.
// Returns pgx.ErrNoRows when it does not.
func (r *Repository) RemoveFunds(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amountCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance_cents = balance_cents - $1, updated_at = now()
		WHERE id = $2 AND balance_cents >= $1
		RETURNING balance_cents
	`, amountCents, walletID).Scan(&newBalance)
	return newBalance, err
}

// InsertEntry appends a ledger row inside the given transaction. The ledger
// is append-only: this is the only statement that touches wallet_ledger
// besides SELECTs.
func (r *Repository) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.WalletLedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO wallet_ledger (id, wallet_id, entry_type, amount_cents, reason, engagement_id, balance_after_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.WalletID, e.EntryType, e.AmountCents, e.Reason, e.EngagementID, e.BalanceAfterCents).Scan(&e.CreatedAt)
}

func (r *Repository) ListEntriesByWallet(ctx context.Context, walletID uuid.UUID) ([]*models.WalletLedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_id, entry_type, amount_cents, reason, engagement_id, balance_after_cents, created_at
		FROM wallet_ledger WHERE wallet_id = $1 ORDER BY created_at DESC
	`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WalletLedgerEntry
	for rows.Next() {
		var e models.WalletLedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.EntryType, &e.AmountCents, &e.Reason, &e.EngagementID, &e.BalanceAfterCents, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// BalanceWithLedgerSum reads the materialized balance and the ledger sum in
// one statement, so both come from the same snapshot. Two separate reads
// can interleave with a committed credit and report a divergence that never
// existed.
func (r *Repository) BalanceWithLedgerSum(ctx context.Context, walletID uuid.UUID) (balance, sum int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT w.balance_cents,
		       COALESCE((
		           SELECT SUM(CASE WHEN e.entry_type = 'debit' THEN -e.amount_cents ELSE e.amount_cents END)
		           FROM wallet_ledger e WHERE e.wallet_id = w.id
		       ), 0)
		FROM wallets w WHERE w.id = $1
	`, walletID).Scan(&balance, &sum)
	return balance, sum, err
}

// SumLedger recomputes the wallet's balance from its ledger entries.
func (r *Repository) SumLedger(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN entry_type = 'debit' THEN -amount_cents ELSE amount_cents END), 0)
		FROM wallet_ledger WHERE wallet_id = $1
	`, walletID).Scan(&sum)
	return sum, err
}

// SetBalance overwrites the materialized balance. Operator use only, after a
// detected divergence has been investigated.
func (r *Repository) SetBalance(ctx context.Context, walletID uuid.UUID, balanceCents int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wallets SET balance_cents = $2, updated_at = now() WHERE id = $1
	`, walletID, balanceCents)
	return err
}
