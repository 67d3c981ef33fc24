package lifecycle

import (
	"ProposalDesk/internal/domain"
)

// Status is the lifecycle state of an open-orders account.
type Status int32

const (
	StatusUnknown Status = iota

	// StatusOpen: at least one resting order, no free balances.
	StatusOpen

	// StatusPartiallyFilled: fills have settled proceeds into the account's
	// free balances. The account needs a settle before the funds are usable.
	StatusPartiallyFilled

	// StatusUncranked: matched volume the crank has not yet moved into free
	// balances. Not derivable from the account shape alone; driven by the
	// indexer's uncranked feed.
	StatusUncranked

	// StatusClosable: no resting orders and both free balances zero. The
	// account can be closed to reclaim rent.
	StatusClosable
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusUncranked:
		return "uncranked"
	case StatusClosable:
		return "closable"
	default:
		return "unknown"
	}
}

// UncrankedSet is the set of account keys the indexer has flagged as holding
// matched-but-uncranked fills. Membership is keyed by account key value, so
// two snapshots of the same account compare equal.
type UncrankedSet map[domain.AccountKey]struct{}

// NewUncrankedSet builds a set from a key list, dropping duplicates.
func NewUncrankedSet(keys []domain.AccountKey) UncrankedSet {
	s := make(UncrankedSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Contains reports membership. A nil set contains nothing.
func (u UncrankedSet) Contains(key domain.AccountKey) bool {
	_, ok := u[key]
	return ok
}

// Classify computes the lifecycle status of an account snapshot.
//
// Free balances win over resting size: an account with both is reported as
// needing settlement, not merely open. An account with free balances and no
// resting orders is likewise PartiallyFilled: its orders were fully consumed
// and the proceeds still sit in the account.
func Classify(acct *domain.OpenOrdersAccount, uncranked UncrankedSet) Status {
	if uncranked.Contains(acct.Key) {
		return StatusUncranked
	}

	resting := acct.Position.HasRestingOrders()
	free := acct.Position.HasFreeBalance()

	switch {
	case free:
		return StatusPartiallyFilled
	case resting:
		return StatusOpen
	default:
		return StatusClosable
	}
}

// NeedsSettle reports whether a settle operation would move funds for this
// account. Used to pre-filter settle plans; the chain program tolerates
// redundant settles but they waste a transaction.
func NeedsSettle(acct *domain.OpenOrdersAccount) bool {
	return acct.Position.HasFreeBalance()
}

// IsClosable reports whether the account holds nothing: no resting orders and
// both free balances zero.
func IsClosable(acct *domain.OpenOrdersAccount) bool {
	return !acct.Position.HasRestingOrders() && !acct.Position.HasFreeBalance()
}
