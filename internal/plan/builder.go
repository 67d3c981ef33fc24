package plan

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/lifecycle"
	"ProposalDesk/internal/market"
	deskmath "ProposalDesk/internal/math"
	"errors"
)

// ErrInvalidEdit indicates an edit whose size and price can neither be taken
// from the caller nor derived from the resting order. No request is built.
var ErrInvalidEdit = errors.New("edit: no explicit or derivable size/price")

// Builder turns intents into ordered operation-request lists for one
// proposal's two books. Pure: it reads snapshots and produces requests, no
// I/O. A failed resolution aborts the whole plan so nothing is ever submitted
// against the wrong book.
type Builder struct {
	proposal domain.Proposal
	markets  domain.MarketPair
}

func NewBuilder(proposal domain.Proposal, markets domain.MarketPair) *Builder {
	return &Builder{proposal: proposal, markets: markets}
}

// Cancel plans the cancellation of a single resting order.
func (b *Builder) Cancel(acct *domain.OpenOrdersAccount, ord domain.OpenOrder) ([]OperationRequest, error) {
	res, err := market.Resolve(b.proposal, b.markets, acct)
	if err != nil {
		return nil, err
	}
	return []OperationRequest{{
		Type:       OpCancel,
		Account:    acct.Key,
		AccountNum: acct.AccountNum,
		Market:     res.Market.ID,
		IsPass:     res.IsPass,
		ClientIDs:  []uint64{ord.ClientID},
	}}, nil
}

// CancelAccount plans one cancel request covering every resting order in the
// account. Accounts with no resting orders produce no requests.
func (b *Builder) CancelAccount(acct *domain.OpenOrdersAccount) ([]OperationRequest, error) {
	if len(acct.OpenOrders) == 0 {
		return nil, nil
	}
	res, err := market.Resolve(b.proposal, b.markets, acct)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(acct.OpenOrders))
	for _, ord := range acct.OpenOrders {
		ids = append(ids, ord.ClientID)
	}
	return []OperationRequest{{
		Type:       OpCancel,
		Account:    acct.Key,
		AccountNum: acct.AccountNum,
		Market:     res.Market.ID,
		IsPass:     res.IsPass,
		ClientIDs:  ids,
	}}, nil
}

// CancelAll plans cancels for every resting order across the accounts,
// preserving input order.
func (b *Builder) CancelAll(accts []*domain.OpenOrdersAccount) ([]OperationRequest, error) {
	var reqs []OperationRequest
	for _, acct := range accts {
		r, err := b.CancelAccount(acct)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r...)
	}
	return reqs, nil
}

// Edit plans a cancel-then-replace of a single order, carried as one request
// because the chain program performs both legs in one instruction. A nil
// newSize reuses the side-matched resting size; a nil newPrice reuses
// lockedPrice scaled to native quote units. The replacement occupies the
// original client id slot.
func (b *Builder) Edit(
	acct *domain.OpenOrdersAccount,
	ord domain.OpenOrder,
	newSize, newPrice *int64,
) ([]OperationRequest, error) {
	res, err := market.Resolve(b.proposal, b.markets, acct)
	if err != nil {
		return nil, err
	}
	if !ord.Side.Valid() {
		return nil, ErrInvalidEdit
	}

	size := acct.RestingSize(ord.Side)
	if newSize != nil {
		size = *newSize
	}
	price := deskmath.PriceNative(ord.LockedPrice, res.Market.QuoteLotSize)
	if newPrice != nil {
		price = *newPrice
	}
	if size <= 0 && price <= 0 {
		return nil, ErrInvalidEdit
	}

	return []OperationRequest{{
		Type:       OpEdit,
		Account:    acct.Key,
		AccountNum: acct.AccountNum,
		Market:     res.Market.ID,
		IsPass:     res.IsPass,
		ClientID:   int64(ord.ClientID),
		Side:       ord.Side,
		Size:       size,
		Price:      price,
	}}, nil
}

// Settle plans one settle request per account holding free balances. The
// output preserves input order; requests are independent and a caller may
// reorder them, but the builder does not.
func (b *Builder) Settle(accts []*domain.OpenOrdersAccount) ([]OperationRequest, error) {
	var reqs []OperationRequest
	for _, acct := range accts {
		if !lifecycle.NeedsSettle(acct) {
			continue
		}
		res, err := market.Resolve(b.proposal, b.markets, acct)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, OperationRequest{
			Type:       OpSettle,
			Account:    acct.Key,
			AccountNum: acct.AccountNum,
			Market:     res.Market.ID,
			IsPass:     res.IsPass,
		})
	}
	return reqs, nil
}

// Crank plans a crank of one book. Cranking is market-scoped, not
// account-scoped, and is an idempotent no-op on a book with nothing to crank.
func (b *Builder) Crank(isPass bool) OperationRequest {
	m := b.markets.Fail
	if isPass {
		m = b.markets.Pass
	}
	return OperationRequest{
		Type:   OpCrank,
		Market: m.ID,
		IsPass: isPass,
	}
}

// CrankBoth plans a crank of the pass book followed by the fail book.
func (b *Builder) CrankBoth() []OperationRequest {
	return []OperationRequest{b.Crank(true), b.Crank(false)}
}
