package plan

import (
	"ProposalDesk/internal/domain"
	"time"

	"github.com/google/uuid"
)

// OpType discriminates operation requests.
type OpType int32

const (
	OpUnknown OpType = iota
	OpCancel
	OpEdit
	OpSettle
	OpClose
	OpCrank
)

func (t OpType) String() string {
	switch t {
	case OpCancel:
		return "cancel"
	case OpEdit:
		return "edit"
	case OpSettle:
		return "settle"
	case OpClose:
		return "close"
	case OpCrank:
		return "crank"
	default:
		return "unknown"
	}
}

// OperationRequest is one state-changing operation against a single book.
// Every request that touches a book carries the resolved market id and the
// pass/fail tag; submitting a request against the wrong book is a caller bug
// the chain program cannot recover from.
type OperationRequest struct {
	Type       OpType
	Account    domain.AccountKey
	AccountNum uint32
	Market     domain.MarketID
	IsPass     bool

	// Cancel: client ids to pull from the book.
	ClientIDs []uint64

	// Edit (cancel-then-replace): the replacement limit order. ClientID reuses
	// the original order's client id slot so the replacement is idempotently
	// identifiable.
	ClientID int64
	Side     domain.Side
	Size     int64 // base lots
	Price    int64 // native quote units
}

// Plan is an ordered batch of operation requests derived from one intent.
type Plan struct {
	ID       uuid.UUID
	Intent   string
	Owner    domain.Owner
	Proposal string
	Requests []OperationRequest
	BuiltAt  time.Time
}

// Empty reports whether the plan has nothing to do. Empty plans are valid;
// executing one is a no-op, not an error.
func (p Plan) Empty() bool {
	return len(p.Requests) == 0
}

// HasSettle reports whether any request settles funds. The orchestrator uses
// this to decide whether balance refetches follow a confirmed execution.
func (p Plan) HasSettle() bool {
	for _, r := range p.Requests {
		if r.Type == OpSettle {
			return true
		}
	}
	return false
}

// New wraps requests with a fresh plan identity.
func New(intent string, owner domain.Owner, proposalID string, reqs []OperationRequest) Plan {
	return Plan{
		ID:       uuid.New(),
		Intent:   intent,
		Owner:    owner,
		Proposal: proposalID,
		Requests: reqs,
		BuiltAt:  time.Now(),
	}
}
