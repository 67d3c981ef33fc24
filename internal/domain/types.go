package domain

// Opaque chain identifiers. Upstream these are base58 account keys; the desk
// never interprets them beyond equality.
type (
	MarketID   string
	AccountKey string
	Owner      string
	Mint       string
)

// Proposal exposes exactly two mirrored conditional order books. Immutable
// once fetched from the indexer.
type Proposal struct {
	ID         string
	PassMarket MarketID
	FailMarket MarketID
}

// Market is one conditional order book (the pass or fail side of a proposal).
// Raw lot quantities must be scaled by the lot sizes for economic
// interpretation.
type Market struct {
	ID           MarketID
	BaseMint     Mint
	QuoteMint    Mint
	BaseLotSize  int64
	QuoteLotSize int64
}

// MarketPair holds the two markets of a proposal. The pass and fail books are
// structurally identical and must never be interchanged, so they are carried
// as named fields rather than a slice.
type MarketPair struct {
	Pass Market
	Fail Market
}

// Side of a resting order.
type Side int32

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// OpenOrder is a resting order inside an open-orders account.
// LockedPrice is in quote-lot units; scale by Market.QuoteLotSize for the
// economic price. ClientID is unique per account.
type OpenOrder struct {
	ID          uint64
	ClientID    uint64
	LockedPrice int64
	Side        Side
}

// Position holds the resting-order totals and the settled-but-unwithdrawn
// free balances of an open-orders account, all in native/lot units.
type Position struct {
	BidsBaseLots    int64
	AsksBaseLots    int64
	BaseFreeNative  int64
	QuoteFreeNative int64
}

// HasRestingOrders reports whether any order size is still resting on the book.
func (p Position) HasRestingOrders() bool {
	return p.BidsBaseLots > 0 || p.AsksBaseLots > 0
}

// HasFreeBalance reports whether settled proceeds are waiting to be withdrawn.
func (p Position) HasFreeBalance() bool {
	return p.BaseFreeNative > 0 || p.QuoteFreeNative > 0
}

// OpenOrdersAccount is a read-only snapshot of an on-chain open-orders
// account. The desk never mutates snapshots; operations it plans invalidate
// them and force a refetch.
//
// AccountNum is unique per (owner, market); an owner may hold several
// accounts per market because order placement creates a new account when no
// reusable one exists.
type OpenOrdersAccount struct {
	Key        AccountKey
	Owner      Owner
	Market     MarketID
	AccountNum uint32
	Position   Position
	OpenOrders []OpenOrder
}

// RestingSize returns the resting base lots for the given side. Bid size
// lives in BidsBaseLots, ask size in AsksBaseLots; the two buckets are never
// mixed.
func (a *OpenOrdersAccount) RestingSize(side Side) int64 {
	switch side {
	case SideBid:
		return a.Position.BidsBaseLots
	case SideAsk:
		return a.Position.AsksBaseLots
	default:
		return 0
	}
}
