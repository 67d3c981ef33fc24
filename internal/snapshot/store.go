package snapshot

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/event"
	"ProposalDesk/internal/lifecycle"
	"ProposalDesk/internal/observability"
	"fmt"
	"sync"
)

// Store holds the desk's view of chain state: proposals, open-orders account
// snapshots per (owner, proposal), the uncranked side channel, and wallet
// balances. Everything in the store is a read-only snapshot; applying a newer
// event rebases the affected slice wholesale.
//
// Slots advance monotonically per partition. A stale event (older slot than
// what is already applied) is dropped silently and counted, never treated as
// an error; the feed may redeliver.
type Store struct {
	mu sync.RWMutex

	proposals map[string]proposalEntry
	accounts  map[accountsKey][]*domain.OpenOrdersAccount
	uncranked map[string]lifecycle.UncrankedSet
	balances  map[balanceKey]int64

	appliedSlot map[string]int64 // partition -> last applied slot

	metrics *observability.Metrics
}

type proposalEntry struct {
	proposal domain.Proposal
	markets  domain.MarketPair
}

type accountsKey struct {
	owner    domain.Owner
	proposal string
}

type balanceKey struct {
	owner domain.Owner
	mint  domain.Mint
}

func NewStore(metrics *observability.Metrics) *Store {
	return &Store{
		proposals:   make(map[string]proposalEntry),
		accounts:    make(map[accountsKey][]*domain.OpenOrdersAccount),
		uncranked:   make(map[string]lifecycle.UncrankedSet),
		balances:    make(map[balanceKey]int64),
		appliedSlot: make(map[string]int64),
		metrics:     metrics,
	}
}

// Apply folds a feed event into the store. Stale slots are dropped; unknown
// event types are an error.
func (s *Store) Apply(evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition := evt.Partition()
	if last, ok := s.appliedSlot[partition]; ok && evt.SourceSlot() < last {
		if s.metrics != nil {
			s.metrics.SnapshotStale.Inc()
		}
		return nil
	}

	switch e := evt.(type) {
	case *event.AccountSnapshot:
		s.accounts[accountsKey{owner: e.Owner, proposal: e.ProposalID}] = e.Accounts
	case *event.ProposalUpdate:
		s.proposals[e.Proposal.ID] = proposalEntry{proposal: e.Proposal, markets: e.Markets}
	case *event.UncrankedList:
		s.uncranked[e.ProposalID] = lifecycle.NewUncrankedSet(e.Accounts)
	case *event.BalanceUpdate:
		s.balances[balanceKey{owner: e.Owner, mint: e.Mint}] = e.Amount
	default:
		return fmt.Errorf("unknown event type %T", evt)
	}

	s.appliedSlot[partition] = evt.SourceSlot()
	if s.metrics != nil {
		s.metrics.SnapshotEvents.WithLabelValues(evt.EventType().String()).Inc()
	}
	return nil
}

// Proposal returns a proposal and its market pair.
func (s *Store) Proposal(id string) (domain.Proposal, domain.MarketPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.proposals[id]
	return entry.proposal, entry.markets, ok
}

// AccountsFor returns a copy of the owner's account list for a proposal.
// The slice is fresh but the account pointers are shared; accounts are
// read-only snapshots, so sharing is safe.
func (s *Store) AccountsFor(owner domain.Owner, proposalID string) []*domain.OpenOrdersAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accts := s.accounts[accountsKey{owner: owner, proposal: proposalID}]
	out := make([]*domain.OpenOrdersAccount, len(accts))
	copy(out, accts)
	return out
}

// UncrankedFor returns the uncranked set for a proposal. Nil when the feed
// has not reported one; a nil set contains nothing.
func (s *Store) UncrankedFor(proposalID string) lifecycle.UncrankedSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uncranked[proposalID]
}

// Balance returns the last observed wallet balance for a mint.
func (s *Store) Balance(owner domain.Owner, mint domain.Mint) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.balances[balanceKey{owner: owner, mint: mint}]
	return v, ok
}

// AppliedSlot returns the last applied slot for a partition, for freshness
// reporting in query responses.
func (s *Store) AppliedSlot(partition string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appliedSlot[partition]
}
