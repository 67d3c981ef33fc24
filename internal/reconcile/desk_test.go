package reconcile_test

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/event"
	"ProposalDesk/internal/reconcile"
	"ProposalDesk/internal/snapshot"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *snapshot.Store {
	t.Helper()
	store := snapshot.NewStore(nil)

	if err := store.Apply(&event.ProposalUpdate{
		Proposal: testProposal,
		Markets:  testMarkets,
		Slot:     1,
	}); err != nil {
		t.Fatalf("seed proposal: %v", err)
	}
	return store
}

func seedAccounts(t *testing.T, store *snapshot.Store, accts ...*domain.OpenOrdersAccount) {
	t.Helper()
	if err := store.Apply(&event.AccountSnapshot{
		Owner:      "trader",
		ProposalID: "prop-1",
		Accounts:   accts,
		Slot:       2,
	}); err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
}

func newTestDesk(t *testing.T, store *snapshot.Store) (*reconcile.Desk, *fakeSubmitter, *fakeRefetcher) {
	t.Helper()
	submitter := &fakeSubmitter{landAll: true}
	refetcher := &fakeRefetcher{}
	desk := reconcile.NewDesk(store, &fakeBuilder{txPerOp: 1}, submitter, refetcher, &fakeAudit{}, nil, zerolog.Nop())
	return desk, submitter, refetcher
}

func passAccount(key string, num uint32, pos domain.Position, orders ...domain.OpenOrder) *domain.OpenOrdersAccount {
	return &domain.OpenOrdersAccount{
		Key:        domain.AccountKey(key),
		Owner:      "trader",
		Market:     "PASS-MKT",
		AccountNum: num,
		Position:   pos,
		OpenOrders: orders,
	}
}

func failAccount(key string, num uint32, pos domain.Position, orders ...domain.OpenOrder) *domain.OpenOrdersAccount {
	a := passAccount(key, num, pos, orders...)
	a.Market = "FAIL-MKT"
	return a
}

// ============================================================================
// Test: PlanIntent
// ============================================================================

func TestPlanIntent_UnknownProposal(t *testing.T) {
	desk, _, _ := newTestDesk(t, newTestStore(t))

	_, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent:   reconcile.IntentCancelAll,
		Owner:    "trader",
		Proposal: "prop-unknown",
	})
	if !errors.Is(err, reconcile.ErrUnknownProposal) {
		t.Fatalf("got %v, want ErrUnknownProposal", err)
	}
}

func TestPlanIntent_UnknownIntent(t *testing.T) {
	desk, _, _ := newTestDesk(t, newTestStore(t))

	_, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent:   "launch-missiles",
		Owner:    "trader",
		Proposal: "prop-1",
	})
	if !errors.Is(err, reconcile.ErrUnknownIntent) {
		t.Fatalf("got %v, want ErrUnknownIntent", err)
	}
}

func TestPlanIntent_CancelAllScoped(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 5},
			domain.OpenOrder{ClientID: 1, Side: domain.SideBid}),
		failAccount("A2", 1, domain.Position{AsksBaseLots: 3},
			domain.OpenOrder{ClientID: 2, Side: domain.SideAsk}),
	)
	desk, _, _ := newTestDesk(t, store)

	all, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCancelAll, Owner: "trader", Proposal: "prop-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Requests) != 2 {
		t.Errorf("unscoped: got %d requests, want 2", len(all.Requests))
	}

	passOnly, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCancelAll, Owner: "trader", Proposal: "prop-1",
		Scope: reconcile.ScopePass,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passOnly.Requests) != 1 || passOnly.Requests[0].Account != "A1" {
		t.Errorf("pass scope: got %+v, want only A1", passOnly.Requests)
	}
}

func TestPlanIntent_CancelOrderRequiresKnownOrder(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 5},
			domain.OpenOrder{ClientID: 1, Side: domain.SideBid}),
	)
	desk, _, _ := newTestDesk(t, store)

	_, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCancelOrder, Owner: "trader", Proposal: "prop-1",
		Account: "A9", ClientID: 1,
	})
	if !errors.Is(err, reconcile.ErrUnknownAccount) {
		t.Fatalf("got %v, want ErrUnknownAccount", err)
	}

	_, err = desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCancelOrder, Owner: "trader", Proposal: "prop-1",
		Account: "A1", ClientID: 99,
	})
	if !errors.Is(err, reconcile.ErrUnknownOrder) {
		t.Fatalf("got %v, want ErrUnknownOrder", err)
	}
}

func TestPlanIntent_SettleAllEmptyPlanWhenNothingToSettle(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 5},
			domain.OpenOrder{ClientID: 1, Side: domain.SideBid}),
	)
	desk, _, _ := newTestDesk(t, store)

	pl, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentSettleAll, Owner: "trader", Proposal: "prop-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pl.Empty() {
		t.Errorf("got %d requests, want empty plan", len(pl.Requests))
	}
}

func TestPlanIntent_CrankScopes(t *testing.T) {
	desk, _, _ := newTestDesk(t, newTestStore(t))

	both, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCrank, Owner: "trader", Proposal: "prop-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(both.Requests) != 2 {
		t.Errorf("default crank: got %d requests, want both books", len(both.Requests))
	}

	failOnly, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCrank, Owner: "trader", Proposal: "prop-1",
		Scope: reconcile.ScopeFail,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failOnly.Requests) != 1 || failOnly.Requests[0].Market != "FAIL-MKT" {
		t.Errorf("fail scope: got %+v", failOnly.Requests)
	}
}

func TestPlanIntent_CloseAllButOne(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("C1", 0, domain.Position{}),
		passAccount("C2", 1, domain.Position{}),
		failAccount("C3", 2, domain.Position{}),
	)
	desk, _, _ := newTestDesk(t, store)

	pl, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentCloseAllButOne, Owner: "trader", Proposal: "prop-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pl.Requests) != 2 {
		t.Fatalf("got %d requests, want 2 (first candidate retained)", len(pl.Requests))
	}
	if pl.Requests[0].Account != "C2" || pl.Requests[1].Account != "C3" {
		t.Errorf("got %v/%v, want C2/C3", pl.Requests[0].Account, pl.Requests[1].Account)
	}
}

func TestPlanIntent_EditMergesStagedSession(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 40},
			domain.OpenOrder{ClientID: 9, LockedPrice: 50, Side: domain.SideBid}),
	)
	desk, _, _ := newTestDesk(t, store)

	desk.Sessions().SetSize("A1", 25)

	pl, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentEditOrder, Owner: "trader", Proposal: "prop-1",
		Account: "A1", ClientID: 9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := pl.Requests[0]
	if r.Size != 25 {
		t.Errorf("size = %d, want staged 25", r.Size)
	}
	if r.Price != 50 {
		t.Errorf("price = %d, want derived 50", r.Price)
	}
}

func TestPlanIntent_ExplicitEditOverridesSession(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 40},
			domain.OpenOrder{ClientID: 9, LockedPrice: 50, Side: domain.SideBid}),
	)
	desk, _, _ := newTestDesk(t, store)

	desk.Sessions().SetSize("A1", 25)
	size := int64(30)

	pl, err := desk.PlanIntent(reconcile.IntentRequest{
		Intent: reconcile.IntentEditOrder, Owner: "trader", Proposal: "prop-1",
		Account: "A1", ClientID: 9, Size: &size,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Requests[0].Size != 30 {
		t.Errorf("size = %d, want explicit 30", pl.Requests[0].Size)
	}
}

// ============================================================================
// Test: ExecuteIntent
// ============================================================================

func TestExecuteIntent_ClearsEditSessionOnSuccess(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 40},
			domain.OpenOrder{ClientID: 9, LockedPrice: 50, Side: domain.SideBid}),
	)
	desk, _, refetcher := newTestDesk(t, store)

	desk.Sessions().SetSize("A1", 25)

	result, err := desk.ExecuteIntent(context.Background(), reconcile.IntentRequest{
		Intent: reconcile.IntentEditOrder, Owner: "trader", Proposal: "prop-1",
		Account: "A1", ClientID: 9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != reconcile.StateConfirmed {
		t.Errorf("state = %s, want confirmed", result.State)
	}
	if _, ok := desk.Sessions().Get("A1"); ok {
		t.Error("session should be cleared after a confirmed edit")
	}
	if len(refetcher.owners) != 1 {
		t.Errorf("refetches = %v, want exactly one", refetcher.owners)
	}
}

func TestExecuteIntent_FailedEditKeepsSession(t *testing.T) {
	store := newTestStore(t)
	seedAccounts(t, store,
		passAccount("A1", 0, domain.Position{BidsBaseLots: 40},
			domain.OpenOrder{ClientID: 9, LockedPrice: 50, Side: domain.SideBid}),
	)
	submitter := &fakeSubmitter{submitErr: errors.New("rpc timeout")}
	desk := reconcile.NewDesk(store, &fakeBuilder{txPerOp: 1}, submitter, &fakeRefetcher{}, &fakeAudit{}, nil, zerolog.Nop())

	desk.Sessions().SetSize("A1", 25)

	_, err := desk.ExecuteIntent(context.Background(), reconcile.IntentRequest{
		Intent: reconcile.IntentEditOrder, Owner: "trader", Proposal: "prop-1",
		Account: "A1", ClientID: 9,
	})
	if err == nil {
		t.Fatal("expected submission error")
	}
	if _, ok := desk.Sessions().Get("A1"); !ok {
		t.Error("session should survive a failed edit for retry")
	}
}

// ============================================================================
// Test: NeedsSettleAny
// ============================================================================

func TestNeedsSettleAny(t *testing.T) {
	clean := passAccount("A1", 0, domain.Position{BidsBaseLots: 1},
		domain.OpenOrder{ClientID: 1, Side: domain.SideBid})
	dirty := passAccount("A2", 1, domain.Position{QuoteFreeNative: 9})

	if reconcile.NeedsSettleAny([]*domain.OpenOrdersAccount{clean}) {
		t.Error("no free balances: want false")
	}
	if !reconcile.NeedsSettleAny([]*domain.OpenOrdersAccount{clean, dirty}) {
		t.Error("free balances present: want true")
	}
}

// ============================================================================
// Test: EditSessionStore
// ============================================================================

func TestEditSessionStore(t *testing.T) {
	s := reconcile.NewEditSessionStore()

	s.SetSize("A1", 10)
	s.SetPrice("A1", 99)

	sess, ok := s.Get("A1")
	if !ok {
		t.Fatal("session not found")
	}
	if sess.EditedSize == nil || *sess.EditedSize != 10 {
		t.Errorf("size = %v, want 10", sess.EditedSize)
	}
	if sess.EditedPrice == nil || *sess.EditedPrice != 99 {
		t.Errorf("price = %v, want 99", sess.EditedPrice)
	}

	s.Clear("A1")
	if _, ok := s.Get("A1"); ok {
		t.Error("session should be gone after Clear")
	}
}
