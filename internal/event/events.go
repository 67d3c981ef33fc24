package event

import (
	"ProposalDesk/internal/domain"
	"fmt"
	"time"
)

// EventType discriminator for feed payloads.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeAccountSnapshot
	EventTypeProposalUpdate
	EventTypeUncrankedList
	EventTypeBalanceUpdate
)

func (et EventType) String() string {
	switch et {
	case EventTypeAccountSnapshot:
		return "AccountSnapshot"
	case EventTypeProposalUpdate:
		return "ProposalUpdate"
	case EventTypeUncrankedList:
		return "UncrankedList"
	case EventTypeBalanceUpdate:
		return "BalanceUpdate"
	default:
		return "Unknown"
	}
}

// Event is the interface all feed payloads implement.
type Event interface {
	// EventType returns the discriminator.
	EventType() EventType

	// Partition groups events whose slots must advance monotonically.
	Partition() string

	// SourceSlot is the chain slot the payload was observed at. Stale slots
	// within a partition are dropped, not errors.
	SourceSlot() int64
}

// AccountSnapshot replaces the known open-orders accounts of one owner for
// one proposal. Snapshots rebase wholesale: the previous account list for the
// (owner, proposal) pair is discarded.
type AccountSnapshot struct {
	Owner      domain.Owner
	ProposalID string
	Accounts   []*domain.OpenOrdersAccount
	Slot       int64
	Timestamp  time.Time
}

func (e *AccountSnapshot) EventType() EventType { return EventTypeAccountSnapshot }
func (e *AccountSnapshot) SourceSlot() int64    { return e.Slot }
func (e *AccountSnapshot) Partition() string {
	return fmt.Sprintf("accounts:%s:%s", e.Owner, e.ProposalID)
}

// ProposalUpdate carries a proposal definition and its two market headers.
type ProposalUpdate struct {
	Proposal  domain.Proposal
	Markets   domain.MarketPair
	Slot      int64
	Timestamp time.Time
}

func (e *ProposalUpdate) EventType() EventType { return EventTypeProposalUpdate }
func (e *ProposalUpdate) SourceSlot() int64    { return e.Slot }
func (e *ProposalUpdate) Partition() string {
	return fmt.Sprintf("proposal:%s", e.Proposal.ID)
}

// UncrankedList is the indexer's side channel naming the accounts that hold
// matched-but-uncranked fills. The desk cannot derive this from account
// shapes; it only consumes it.
type UncrankedList struct {
	ProposalID string
	Accounts   []domain.AccountKey
	Slot       int64
	Timestamp  time.Time
}

func (e *UncrankedList) EventType() EventType { return EventTypeUncrankedList }
func (e *UncrankedList) SourceSlot() int64    { return e.Slot }
func (e *UncrankedList) Partition() string {
	return fmt.Sprintf("uncranked:%s", e.ProposalID)
}

// BalanceUpdate carries a wallet token balance observed by the indexer,
// published in response to a balance refetch after settlement.
type BalanceUpdate struct {
	Owner     domain.Owner
	Mint      domain.Mint
	Amount    int64
	Slot      int64
	Timestamp time.Time
}

func (e *BalanceUpdate) EventType() EventType { return EventTypeBalanceUpdate }
func (e *BalanceUpdate) SourceSlot() int64    { return e.Slot }
func (e *BalanceUpdate) Partition() string {
	return fmt.Sprintf("balance:%s:%s", e.Owner, e.Mint)
}
