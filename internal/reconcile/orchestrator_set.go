package reconcile

import (
	"ProposalDesk/internal/domain"
	"sync"
)

// orchestratorSet lazily creates one orchestrator per proposal. Proposals
// arrive dynamically over the feed, so the set grows as they are first acted
// on; busy flags stay scoped to the proposal they protect.
type orchestratorSet struct {
	mu   sync.Mutex
	byID map[string]*Orchestrator
}

func newOrchestratorSet() *orchestratorSet {
	return &orchestratorSet{byID: make(map[string]*Orchestrator)}
}

func (s *orchestratorSet) get(proposal domain.Proposal, markets domain.MarketPair, d *Desk) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orch, ok := s.byID[proposal.ID]; ok {
		return orch
	}
	orch := NewOrchestrator(proposal, markets, d.txBuilder, d.submitter, d.refetcher, d.audit, d.metrics, d.log)
	s.byID[proposal.ID] = orch
	return orch
}
