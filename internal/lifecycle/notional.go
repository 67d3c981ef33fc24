package lifecycle

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/market"
	deskmath "ProposalDesk/internal/math"
)

// Totals aggregates resting size and notional over a set of accounts.
// Size is in base lots, Notional in native quote units.
type Totals struct {
	Size     int64
	Notional int64
}

// InOrderTotals breaks the aggregate down per conditional book.
type InOrderTotals struct {
	Pass Totals
	Fail Totals
}

// Combined returns the sum over both books.
func (t InOrderTotals) Combined() Totals {
	return Totals{
		Size:     deskmath.AddSaturating(t.Pass.Size, t.Fail.Size),
		Notional: deskmath.AddSaturating(t.Pass.Notional, t.Fail.Notional),
	}
}

// TotalSize sums the side-matched resting lots of every order across the
// accounts. Bid size comes from the bids bucket, ask size from the asks
// bucket. An empty collection sums to zero.
func TotalSize(accts []*domain.OpenOrdersAccount) int64 {
	var total int64
	for _, acct := range accts {
		for _, ord := range acct.OpenOrders {
			total = deskmath.AddSaturating(total, acct.RestingSize(ord.Side))
		}
	}
	return total
}

// TotalNotional sums size × lockedPrice × quoteLotSize across every order,
// resolving each account's quote lot size through its book. The sum is
// order-independent; an empty collection sums to zero.
func TotalNotional(
	accts []*domain.OpenOrdersAccount,
	proposal domain.Proposal,
	markets domain.MarketPair,
) (int64, error) {
	var total int64
	for _, acct := range accts {
		res, err := market.Resolve(proposal, markets, acct)
		if err != nil {
			return 0, err
		}
		for _, ord := range acct.OpenOrders {
			n := deskmath.Notional(acct.RestingSize(ord.Side), ord.LockedPrice, res.Market.QuoteLotSize)
			total = deskmath.AddSaturating(total, n)
		}
	}
	return total, nil
}

// Aggregate computes per-book and combined size/notional totals in one pass.
func Aggregate(
	accts []*domain.OpenOrdersAccount,
	proposal domain.Proposal,
	markets domain.MarketPair,
) (InOrderTotals, error) {
	var out InOrderTotals
	for _, acct := range accts {
		res, err := market.Resolve(proposal, markets, acct)
		if err != nil {
			return InOrderTotals{}, err
		}
		bucket := &out.Fail
		if res.IsPass {
			bucket = &out.Pass
		}
		for _, ord := range acct.OpenOrders {
			size := acct.RestingSize(ord.Side)
			bucket.Size = deskmath.AddSaturating(bucket.Size, size)
			bucket.Notional = deskmath.AddSaturating(bucket.Notional,
				deskmath.Notional(size, ord.LockedPrice, res.Market.QuoteLotSize))
		}
	}
	return out, nil
}
