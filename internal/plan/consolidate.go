package plan

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/lifecycle"
)

// Account consolidation: closing open-orders accounts that hold nothing, to
// reclaim their rent. Candidates are deduplicated by account key value (two
// snapshots of the same account are one candidate) and input order is
// preserved, so callers control retention by controlling input order.

// closableCandidates returns the closable accounts in input order, one entry
// per account key.
func closableCandidates(accts []*domain.OpenOrdersAccount, uncranked lifecycle.UncrankedSet) []*domain.OpenOrdersAccount {
	seen := make(map[domain.AccountKey]struct{}, len(accts))
	var out []*domain.OpenOrdersAccount
	for _, acct := range accts {
		if lifecycle.Classify(acct, uncranked) != lifecycle.StatusClosable {
			continue
		}
		if _, dup := seen[acct.Key]; dup {
			continue
		}
		seen[acct.Key] = struct{}{}
		out = append(out, acct)
	}
	return out
}

// CloseAll plans closure of every closable account.
func CloseAll(accts []*domain.OpenOrdersAccount, uncranked lifecycle.UncrankedSet) []OperationRequest {
	return closeRequests(closableCandidates(accts, uncranked))
}

// CloseAllButOne plans closure of every closable account except the first
// candidate. Closing all of them would force the trader's next order to open
// a brand-new account at rent cost; keeping one avoids that. Fewer than two
// candidates yields an empty plan.
func CloseAllButOne(accts []*domain.OpenOrdersAccount, uncranked lifecycle.UncrankedSet) []OperationRequest {
	candidates := closableCandidates(accts, uncranked)
	if len(candidates) < 2 {
		return nil
	}
	return closeRequests(candidates[1:])
}

func closeRequests(accts []*domain.OpenOrdersAccount) []OperationRequest {
	reqs := make([]OperationRequest, 0, len(accts))
	for _, acct := range accts {
		reqs = append(reqs, OperationRequest{
			Type:       OpClose,
			Account:    acct.Key,
			AccountNum: acct.AccountNum,
			Market:     acct.Market,
		})
	}
	return reqs
}
