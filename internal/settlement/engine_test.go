package settlement

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/workbridge/backend/internal/engagement"
	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
	"github.com/workbridge/backend/internal/wallet"
)

// ---------------------------------------------------------------------------
// In-memory mocks. The handover mock enforces the same conditional-write
// semantics as the SQL repository, so races are decided exactly once.
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- Engagement store mock ---

type mockEngagements struct {
	mu          sync.Mutex
	engagements map[uuid.UUID]*models.Engagement
}

func newMockEngagements(engs ...*models.Engagement) *mockEngagements {
	m := &mockEngagements{engagements: make(map[uuid.UUID]*models.Engagement)}
	for _, e := range engs {
		cp := *e
		m.engagements[e.ID] = &cp
	}
	return m
}

func (m *mockEngagements) GetByID(_ context.Context, id uuid.UUID) (*models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engagements[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *mockEngagements) MarkClosedTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engagements[id]
	if !ok || e.Status != models.EngagementStatusActive {
		return false, nil
	}
	e.Status = models.EngagementStatusClosed
	return true, nil
}

func (m *mockEngagements) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engagements[id].Status
}

// --- Handover store mock ---

type mockHandovers struct {
	mu        sync.Mutex
	handovers map[uuid.UUID]*models.Handover
}

func newMockHandovers(hs ...*models.Handover) *mockHandovers {
	m := &mockHandovers{handovers: make(map[uuid.UUID]*models.Handover)}
	for _, h := range hs {
		cp := *h
		m.handovers[h.EngagementID] = &cp
	}
	return m
}

func (m *mockHandovers) Get(_ context.Context, engagementID uuid.UUID) (*models.Handover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handovers[engagementID]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

// AcceptTx applies only while the row is still submitted, like the SQL
// conditional UPDATE.
func (m *mockHandovers) AcceptTx(_ context.Context, _ pgx.Tx, engagementID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handovers[engagementID]
	if !ok || h.Status != models.HandoverStatusSubmitted {
		return false, nil
	}
	h.Status = models.HandoverStatusAccepted
	return true, nil
}

func (m *mockHandovers) status(engagementID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handovers[engagementID].Status
}

// --- Wallet store mock (used through the real wallet.Service) ---

type mockWalletStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	byUser  map[uuid.UUID]uuid.UUID
	entries []*models.WalletLedgerEntry
}

func newMockWalletStore(ws ...*models.Wallet) *mockWalletStore {
	m := &mockWalletStore{
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

func (m *mockWalletStore) GetByUserIDForUpdate(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUser[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m.wallets[id]
	return &cp, nil
}

func (m *mockWalletStore) AddFunds(_ context.Context, _ pgx.Tx, walletID uuid.UUID, amountCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return 0, fmt.Errorf("wallet %s not found", walletID)
	}
	w.BalanceCents += amountCents
	return w.BalanceCents, nil
}

func (m *mockWalletStore) RemoveFunds(_ context.Context, _ pgx.Tx, walletID uuid.UUID, amountCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok || w.BalanceCents < amountCents {
		return 0, pgx.ErrNoRows
	}
	w.BalanceCents -= amountCents
	return w.BalanceCents, nil
}

func (m *mockWalletStore) InsertEntry(_ context.Context, _ pgx.Tx, e *models.WalletLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockWalletStore) BalanceWithLedgerSum(_ context.Context, walletID uuid.UUID) (int64, int64, error) {
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

func (m *mockWalletStore) SumLedger(_ context.Context, walletID uuid.UUID) (int64, error) {
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

func (m *mockWalletStore) SetBalance(_ context.Context, walletID uuid.UUID, balanceCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[walletID].BalanceCents = balanceCents
	return nil
}

func (m *mockWalletStore) balance(walletID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[walletID].BalanceCents
}

func (m *mockWalletStore) entriesFor(walletID uuid.UUID) []*models.WalletLedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WalletLedgerEntry
	for _, e := range m.entries {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out
}

// --- Notifier mock ---

type mockNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (m *mockNotifier) EnqueueTx(_ context.Context, _ pgx.Tx, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) byType(typ string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// --- Source mock ---

type mockSource struct {
	mu     sync.Mutex
	kind   string
	closed []uuid.UUID
}

func (m *mockSource) Kind() string { return m.kind }

func (m *mockSource) CloseSubject(_ context.Context, _ pgx.Tx, subjectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, subjectID)
	return nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type fixture struct {
	engine      *Engine
	engagements *mockEngagements
	handovers   *mockHandovers
	store       *mockWalletStore
	walletSvc   *wallet.Service
	notifier    *mockNotifier
	source      *mockSource

	engagementID uuid.UUID
	subjectID    uuid.UUID
	clientID     uuid.UUID
	workerID     uuid.UUID
	walletID     uuid.UUID
	amount       int64
}

func newFixture(handoverStatus string) *fixture {
	f := &fixture{
		engagementID: uuid.New(),
		subjectID:    uuid.New(),
		clientID:     uuid.New(),
		workerID:     uuid.New(),
		walletID:     uuid.New(),
		amount:       25000,
	}
	f.engagements = newMockEngagements(&models.Engagement{
		ID:          f.engagementID,
		Kind:        models.EngagementKindProject,
		SubjectID:   f.subjectID,
		ClientID:    f.clientID,
		WorkerID:    f.workerID,
		AmountCents: f.amount,
		Title:       "Landing page build",
		Status:      models.EngagementStatusActive,
	})
	f.handovers = newMockHandovers(&models.Handover{
		EngagementID: f.engagementID,
		Status:       handoverStatus,
	})
	f.store = newMockWalletStore(&models.Wallet{ID: f.walletID, UserID: f.workerID, Currency: "USD"})
	f.walletSvc = wallet.NewService(f.store)
	f.notifier = &mockNotifier{}
	f.source = &mockSource{kind: models.EngagementKindProject}

	f.engine = NewEngine(
		mockPool{},
		f.engagements,
		f.handovers,
		f.walletSvc,
		map[string]engagement.Source{models.EngagementKindProject: f.source},
		f.notifier,
		nil,
	)
	return f
}

// ---------------------------------------------------------------------------
// 1. TestRelease_HappyPath
// ---------------------------------------------------------------------------

func TestRelease_HappyPath(t *testing.T) {
	f := newFixture(models.HandoverStatusSubmitted)
	ctx := context.Background()

	if err := f.engine.Release(ctx, f.engagementID, f.clientID); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if got := f.store.balance(f.walletID); got != f.amount {
		t.Errorf("worker balance: got %d, want %d", got, f.amount)
	}
	entries := f.store.entriesFor(f.walletID)
	if len(entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.EntryType != models.LedgerEntryCredit || e.AmountCents != f.amount {
		t.Errorf("ledger entry: got %s/%d, want credit/%d", e.EntryType, e.AmountCents, f.amount)
	}
	if e.Reason != models.LedgerReasonEngagementRelease {
		t.Errorf("ledger reason: got %q, want %q", e.Reason, models.LedgerReasonEngagementRelease)
	}
	if e.EngagementID == nil || *e.EngagementID != f.engagementID {
		t.Error("ledger entry should reference the engagement")
	}

	if got := f.handovers.status(f.engagementID); got != models.HandoverStatusAccepted {
		t.Errorf("handover status: got %q, want accepted", got)
	}
	if got := f.engagements.status(f.engagementID); got != models.EngagementStatusClosed {
		t.Errorf("engagement status: got %q, want closed", got)
	}
	if len(f.source.closed) != 1 || f.source.closed[0] != f.subjectID {
		t.Error("parent subject should be closed exactly once")
	}

	if n := f.notifier.byType(models.NotificationPaymentReleased); len(n) != 1 || n[0].RecipientID != f.workerID {
		t.Error("expected one payment_released notification to the worker")
	}
	if n := f.notifier.byType(models.NotificationRatingAvailable); len(n) != 1 {
		t.Error("expected one rating_available notification")
	}

	if err := f.walletSvc.VerifyBalance(ctx, f.walletID); err != nil {
		t.Errorf("VerifyBalance after release: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 2. TestRelease_ExactlyOnce
//    Two concurrent accepts on a submitted handover: exactly one success,
//    one Conflict, and the wallet credited exactly once.
// ---------------------------------------------------------------------------

func TestRelease_ExactlyOnce(t *testing.T) {
	f := newFixture(models.HandoverStatusSubmitted)
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.engine.Release(ctx, f.engagementID, f.clientID)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case faults.Is(err, faults.KindConflict):
			conflicts++
		default:
			t.Errorf("unexpected error from concurrent release: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 and 1", successes, conflicts)
	}

	if got := f.store.balance(f.walletID); got != f.amount {
		t.Errorf("worker balance after race: got %d, want %d (credited once)", got, f.amount)
	}
	if n := len(f.store.entriesFor(f.walletID)); n != 1 {
		t.Errorf("ledger entries after race: got %d, want 1", n)
	}
	if err := f.walletSvc.VerifyBalance(ctx, f.walletID); err != nil {
		t.Errorf("VerifyBalance after race: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 3. TestRelease_WrongState
//    Accept on none/accepted/disputed fails and moves no funds.
// ---------------------------------------------------------------------------

func TestRelease_WrongState(t *testing.T) {
	cases := []struct {
		status   string
		wantKind faults.Kind
	}{
		{models.HandoverStatusNone, faults.KindPreconditionFailed},
		{models.HandoverStatusAccepted, faults.KindConflict},
		{models.HandoverStatusDisputed, faults.KindPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			f := newFixture(tc.status)
			err := f.engine.Release(context.Background(), f.engagementID, f.clientID)
			if !faults.Is(err, tc.wantKind) {
				t.Fatalf("Release on %s handover: got %v, want kind %v", tc.status, err, tc.wantKind)
			}
			if got := f.store.balance(f.walletID); got != 0 {
				t.Errorf("balance after rejected release: got %d, want 0", got)
			}
			if n := len(f.store.entriesFor(f.walletID)); n != 0 {
				t.Errorf("ledger entries after rejected release: got %d, want 0", n)
			}
			if got := f.handovers.status(f.engagementID); got != tc.status {
				t.Errorf("handover status mutated: got %q, want %q", got, tc.status)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 4. TestRelease_Authorization
// ---------------------------------------------------------------------------

func TestRelease_Authorization(t *testing.T) {
	f := newFixture(models.HandoverStatusSubmitted)
	ctx := context.Background()

	// The worker cannot accept their own handover.
	if err := f.engine.Release(ctx, f.engagementID, f.workerID); !faults.Is(err, faults.KindForbidden) {
		t.Errorf("worker accepting own handover: got %v, want Forbidden", err)
	}
	// Nor can an unrelated actor.
	if err := f.engine.Release(ctx, f.engagementID, uuid.New()); !faults.Is(err, faults.KindForbidden) {
		t.Errorf("stranger accepting handover: got %v, want Forbidden", err)
	}
	if got := f.handovers.status(f.engagementID); got != models.HandoverStatusSubmitted {
		t.Errorf("handover status mutated by forbidden call: got %q", got)
	}
	if got := f.store.balance(f.walletID); got != 0 {
		t.Errorf("balance mutated by forbidden call: got %d", got)
	}
}

// ---------------------------------------------------------------------------
// 5. TestRelease_MissingWalletAndEngagement
// ---------------------------------------------------------------------------

func TestRelease_MissingWalletAndEngagement(t *testing.T) {
	ctx := context.Background()

	f := newFixture(models.HandoverStatusSubmitted)
	if err := f.engine.Release(ctx, uuid.New(), f.clientID); !faults.Is(err, faults.KindNotFound) {
		t.Errorf("release on unknown engagement: got %v, want NotFound", err)
	}

	// A missing worker wallet is a data-integrity error, never silently
	// recovered, and no ledger entry is written.
	f = newFixture(models.HandoverStatusSubmitted)
	f.store = newMockWalletStore() // no wallets at all
	f.walletSvc = wallet.NewService(f.store)
	f.engine.Wallets = f.walletSvc
	if err := f.engine.Release(ctx, f.engagementID, f.clientID); !faults.Is(err, faults.KindNotFound) {
		t.Errorf("release with missing wallet: got %v, want NotFound", err)
	}
	if n := len(f.store.entries); n != 0 {
		t.Errorf("ledger entries after failed release: got %d, want 0", n)
	}
}

// ---------------------------------------------------------------------------
// 6. TestRelease_AmountIsSnapshot
//    Settlement uses the engagement's immutable amount, so the conservation
//    property balance == sum(ledger) holds regardless of listing changes.
// ---------------------------------------------------------------------------

func TestRelease_AmountIsSnapshot(t *testing.T) {
	f := newFixture(models.HandoverStatusSubmitted)
	ctx := context.Background()

	if err := f.engine.Release(ctx, f.engagementID, f.clientID); err != nil {
		t.Fatalf("Release: %v", err)
	}

	var ledgerSum int64
	for _, e := range f.store.entriesFor(f.walletID) {
		ledgerSum += e.SignedAmount()
	}
	if got := f.store.balance(f.walletID); got != ledgerSum {
		t.Errorf("balance %d diverges from ledger sum %d", got, ledgerSum)
	}
	if ledgerSum != f.amount {
		t.Errorf("ledger sum: got %d, want the award snapshot %d", ledgerSum, f.amount)
	}
}
