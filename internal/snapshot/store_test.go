package snapshot_test

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/event"
	"ProposalDesk/internal/snapshot"
	"testing"
)

func accountSnapshot(owner, proposal string, slot int64, keys ...string) *event.AccountSnapshot {
	accts := make([]*domain.OpenOrdersAccount, 0, len(keys))
	for _, k := range keys {
		accts = append(accts, &domain.OpenOrdersAccount{
			Key:    domain.AccountKey(k),
			Owner:  domain.Owner(owner),
			Market: "PASS-MKT",
		})
	}
	return &event.AccountSnapshot{
		Owner:      domain.Owner(owner),
		ProposalID: proposal,
		Accounts:   accts,
		Slot:       slot,
	}
}

// ============================================================================
// Test: Apply
// ============================================================================

func TestStore_ApplyAndRead(t *testing.T) {
	store := snapshot.NewStore(nil)

	if err := store.Apply(accountSnapshot("trader", "prop-1", 100, "A1", "A2")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	accts := store.AccountsFor("trader", "prop-1")
	if len(accts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accts))
	}
	if got := store.AppliedSlot("accounts:trader:prop-1"); got != 100 {
		t.Errorf("applied slot = %d, want 100", got)
	}
}

func TestStore_NewerSnapshotRebasesWholesale(t *testing.T) {
	store := snapshot.NewStore(nil)

	store.Apply(accountSnapshot("trader", "prop-1", 100, "A1", "A2"))
	store.Apply(accountSnapshot("trader", "prop-1", 200, "A3"))

	accts := store.AccountsFor("trader", "prop-1")
	if len(accts) != 1 || accts[0].Key != "A3" {
		t.Fatalf("expected wholesale rebase to [A3], got %v", accts)
	}
}

func TestStore_StaleSlotDropped(t *testing.T) {
	store := snapshot.NewStore(nil)

	store.Apply(accountSnapshot("trader", "prop-1", 200, "A1"))
	if err := store.Apply(accountSnapshot("trader", "prop-1", 100, "STALE")); err != nil {
		t.Fatalf("stale apply should not error: %v", err)
	}

	accts := store.AccountsFor("trader", "prop-1")
	if len(accts) != 1 || accts[0].Key != "A1" {
		t.Errorf("stale snapshot overwrote fresh state: %v", accts)
	}
	if got := store.AppliedSlot("accounts:trader:prop-1"); got != 200 {
		t.Errorf("applied slot = %d, want 200", got)
	}
}

func TestStore_PartitionsAreIndependent(t *testing.T) {
	store := snapshot.NewStore(nil)

	store.Apply(accountSnapshot("trader", "prop-1", 200, "A1"))
	// Same owner, different proposal: an older slot is fine there.
	if err := store.Apply(accountSnapshot("trader", "prop-2", 50, "B1")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(store.AccountsFor("trader", "prop-2")) != 1 {
		t.Error("independent partition dropped a valid snapshot")
	}
}

// ============================================================================
// Test: Proposal / Uncranked / Balance
// ============================================================================

func TestStore_ProposalUpdate(t *testing.T) {
	store := snapshot.NewStore(nil)

	store.Apply(&event.ProposalUpdate{
		Proposal: domain.Proposal{ID: "prop-1", PassMarket: "PASS-MKT", FailMarket: "FAIL-MKT"},
		Markets: domain.MarketPair{
			Pass: domain.Market{ID: "PASS-MKT", QuoteLotSize: 1},
			Fail: domain.Market{ID: "FAIL-MKT", QuoteLotSize: 10},
		},
		Slot: 10,
	})

	proposal, markets, ok := store.Proposal("prop-1")
	if !ok {
		t.Fatal("proposal not found after apply")
	}
	if proposal.PassMarket != "PASS-MKT" || markets.Fail.QuoteLotSize != 10 {
		t.Errorf("unexpected proposal state: %+v %+v", proposal, markets)
	}

	if _, _, ok := store.Proposal("prop-unknown"); ok {
		t.Error("unknown proposal should not be found")
	}
}

func TestStore_UncrankedList(t *testing.T) {
	store := snapshot.NewStore(nil)

	store.Apply(&event.UncrankedList{
		ProposalID: "prop-1",
		Accounts:   []domain.AccountKey{"A1"},
		Slot:       5,
	})

	set := store.UncrankedFor("prop-1")
	if !set.Contains("A1") {
		t.Error("uncranked set missing A1")
	}
	if store.UncrankedFor("prop-2").Contains("A1") {
		t.Error("uncranked set leaked across proposals")
	}

	// A newer, empty list clears the flag.
	store.Apply(&event.UncrankedList{ProposalID: "prop-1", Slot: 6})
	if store.UncrankedFor("prop-1").Contains("A1") {
		t.Error("newer empty list should clear uncranked membership")
	}
}

func TestStore_BalanceUpdate(t *testing.T) {
	store := snapshot.NewStore(nil)

	store.Apply(&event.BalanceUpdate{Owner: "trader", Mint: "pQUOTE", Amount: 1234, Slot: 9})

	amount, ok := store.Balance("trader", "pQUOTE")
	if !ok || amount != 1234 {
		t.Errorf("got (%d, %v), want (1234, true)", amount, ok)
	}
	if _, ok := store.Balance("trader", "other"); ok {
		t.Error("unknown mint should report no balance")
	}
}
