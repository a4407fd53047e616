package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

type memStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	byUser  map[uuid.UUID]uuid.UUID
	entries []*models.WalletLedgerEntry
}

func newMemStore(ws ...*models.Wallet) *memStore {
	m := &memStore{
		wallets: make(map[uuid.UUID]*models.Wallet),
		byUser:  make(map[uuid.UUID]uuid.UUID),
	}
	for _, w := range ws {
		cp := *w
		m.wallets[w.ID] = &cp
		m.byUser[w.UserID] = w.ID
	}
	return m
}

func (m *memStore) GetByUserIDForUpdate(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUser[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m.wallets[id]
	return &cp, nil
}

func (m *memStore) AddFunds(_ context.Context, _ pgx.Tx, walletID uuid.UUID, amountCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallets[walletID]
	w.BalanceCents += amountCents
	return w.BalanceCents, nil
}

func (m *memStore) RemoveFunds(_ context.Context, _ pgx.Tx, walletID uuid.UUID, amountCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallets[walletID]
	if w.BalanceCents < amountCents {
		return 0, pgx.ErrNoRows
	}
	w.BalanceCents -= amountCents
	return w.BalanceCents, nil
}

func (m *memStore) InsertEntry(_ context.Context, _ pgx.Tx, e *models.WalletLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

// BalanceWithLedgerSum returns both values under one lock hold, matching
// the single-snapshot read of the SQL repository.
func (m *memStore) BalanceWithLedgerSum(_ context.Context, walletID uuid.UUID) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return 0, 0, pgx.ErrNoRows
	}
	var sum int64
	for _, e := range m.entries {
		if e.WalletID == walletID {
			sum += e.SignedAmount()
		}
	}
	return w.BalanceCents, sum, nil
}

func (m *memStore) SumLedger(_ context.Context, walletID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries {
		if e.WalletID == walletID {
			sum += e.SignedAmount()
		}
	}
	return sum, nil
}

// commitCredit applies a balance bump and its ledger entry under one lock
// hold, the way a committed SQL transaction lands as a unit.
func (m *memStore) commitCredit(walletID uuid.UUID, amountCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallets[walletID]
	w.BalanceCents += amountCents
	m.entries = append(m.entries, &models.WalletLedgerEntry{
		ID: uuid.New(), WalletID: walletID,
		EntryType: models.LedgerEntryCredit, AmountCents: amountCents,
		BalanceAfterCents: w.BalanceCents,
	})
}

func (m *memStore) SetBalance(_ context.Context, walletID uuid.UUID, balanceCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[walletID].BalanceCents = balanceCents
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreditAndDebit(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	store := newMemStore(&models.Wallet{ID: walletID, UserID: userID, Currency: "USD"})
	svc := NewService(store)
	ctx := context.Background()

	entry, err := svc.Credit(ctx, nil, userID, nil, 5000, models.LedgerReasonDeposit)
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if entry.EntryType != models.LedgerEntryCredit || entry.AmountCents != 5000 {
		t.Errorf("credit entry: got %s/%d", entry.EntryType, entry.AmountCents)
	}
	if entry.BalanceAfterCents != 5000 {
		t.Errorf("balance_after on credit: got %d, want 5000", entry.BalanceAfterCents)
	}

	entry, err = svc.Debit(ctx, nil, userID, nil, 1500, models.LedgerReasonWithdrawal)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if entry.BalanceAfterCents != 3500 {
		t.Errorf("balance_after on debit: got %d, want 3500", entry.BalanceAfterCents)
	}

	w, _ := store.GetByID(ctx, walletID)
	if w.BalanceCents != 3500 {
		t.Errorf("materialized balance: got %d, want 3500", w.BalanceCents)
	}
	if err := svc.VerifyBalance(ctx, walletID); err != nil {
		t.Errorf("VerifyBalance: %v", err)
	}
}

func TestCredit_Rejections(t *testing.T) {
	userID := uuid.New()
	store := newMemStore(&models.Wallet{ID: uuid.New(), UserID: userID, Currency: "USD"})
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, nil, userID, nil, 0, models.LedgerReasonDeposit); !faults.Is(err, faults.KindValidation) {
		t.Errorf("zero credit: got %v, want Validation", err)
	}
	if _, err := svc.Credit(ctx, nil, userID, nil, -100, models.LedgerReasonDeposit); !faults.Is(err, faults.KindValidation) {
		t.Errorf("negative credit: got %v, want Validation", err)
	}
	if _, err := svc.Credit(ctx, nil, uuid.New(), nil, 100, models.LedgerReasonDeposit); !faults.Is(err, faults.KindNotFound) {
		t.Errorf("credit to unknown user: got %v, want NotFound", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("rejected credits wrote %d ledger entries", len(store.entries))
	}
}

func TestDebit_InsufficientFunds(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	store := newMemStore(&models.Wallet{ID: walletID, UserID: userID, BalanceCents: 200, Currency: "USD"})
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Debit(ctx, nil, userID, nil, 500, models.LedgerReasonWithdrawal); !faults.Is(err, faults.KindValidation) {
		t.Fatalf("overdraw: got %v, want Validation", err)
	}
	w, _ := store.GetByID(ctx, walletID)
	if w.BalanceCents != 200 {
		t.Errorf("balance after rejected debit: got %d, want 200", w.BalanceCents)
	}
	if len(store.entries) != 0 {
		t.Errorf("rejected debit wrote %d ledger entries", len(store.entries))
	}
}

// creditBetweenReadsStore commits one consistent credit (balance and ledger
// together) after any standalone balance read, modeling a settlement that
// lands while a verification is in flight.
type creditBetweenReadsStore struct {
	*memStore
	walletID uuid.UUID
}

func (s *creditBetweenReadsStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	w, err := s.memStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.memStore.commitCredit(s.walletID, 100)
	return w, err
}

// A consistent wallet must never trip the divergence alarm just because a
// credit committed while the check was running. The balance and ledger sum
// are read in one snapshot, so interleaved writes cannot fake a mismatch.
func TestVerifyBalance_CreditDuringCheck(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	mem := newMemStore(&models.Wallet{ID: walletID, UserID: userID, Currency: "USD"})
	store := &creditBetweenReadsStore{memStore: mem, walletID: walletID}
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, nil, userID, nil, 500, models.LedgerReasonDeposit); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := svc.VerifyBalance(ctx, walletID); err != nil {
		t.Fatalf("VerifyBalance during concurrent credit: %v", err)
	}

	// Many credits racing repeated verifications stay clean too.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			mem.commitCredit(walletID, 10)
		}
	}()
	for {
		select {
		case <-done:
			if err := svc.VerifyBalance(ctx, walletID); err != nil {
				t.Fatalf("VerifyBalance after credits settled: %v", err)
			}
			return
		default:
			if err := svc.VerifyBalance(ctx, walletID); err != nil {
				t.Fatalf("VerifyBalance while credits race: %v", err)
			}
		}
	}
}

func TestVerifyBalance_Divergence(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	store := newMemStore(&models.Wallet{ID: walletID, UserID: userID, Currency: "USD"})
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, nil, userID, nil, 1000, models.LedgerReasonDeposit); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	// Corrupt the materialized balance behind the ledger's back.
	if err := store.SetBalance(ctx, walletID, 999); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	err := svc.VerifyBalance(ctx, walletID)
	if !errors.Is(err, faults.ErrLedgerDivergence) {
		t.Fatalf("VerifyBalance on corrupted wallet: got %v, want ErrLedgerDivergence", err)
	}

	// RebuildBalance restores the invariant from the ledger.
	sum, err := svc.RebuildBalance(ctx, walletID)
	if err != nil {
		t.Fatalf("RebuildBalance: %v", err)
	}
	if sum != 1000 {
		t.Errorf("rebuilt balance: got %d, want 1000", sum)
	}
	if err := svc.VerifyBalance(ctx, walletID); err != nil {
		t.Errorf("VerifyBalance after rebuild: %v", err)
	}
}
