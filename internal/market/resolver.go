package market

import (
	"ProposalDesk/internal/domain"
	"fmt"
)

// UnknownMarketError indicates an account whose market id matches neither of
// the proposal's two books. This is stale or unrelated data; it must surface
// to the caller and never default to either side.
type UnknownMarketError struct {
	Proposal string
	Account  domain.AccountKey
	Market   domain.MarketID
}

func (e *UnknownMarketError) Error() string {
	return fmt.Sprintf("account %s: market %s matches neither book of proposal %s",
		e.Account, e.Market, e.Proposal)
}

// Resolution identifies which conditional book an account belongs to.
type Resolution struct {
	Market domain.Market
	IsPass bool
}

// Resolve determines the book an account belongs to by market-id equality
// against the proposal's pass and fail markets. Membership is decided by id
// only, never by position contents.
func Resolve(proposal domain.Proposal, markets domain.MarketPair, acct *domain.OpenOrdersAccount) (Resolution, error) {
	switch acct.Market {
	case proposal.PassMarket:
		return Resolution{Market: markets.Pass, IsPass: true}, nil
	case proposal.FailMarket:
		return Resolution{Market: markets.Fail, IsPass: false}, nil
	default:
		return Resolution{}, &UnknownMarketError{
			Proposal: proposal.ID,
			Account:  acct.Key,
			Market:   acct.Market,
		}
	}
}

// IsPass reports whether the account sits on the proposal's pass book.
func IsPass(proposal domain.Proposal, acct *domain.OpenOrdersAccount) (bool, error) {
	switch acct.Market {
	case proposal.PassMarket:
		return true, nil
	case proposal.FailMarket:
		return false, nil
	default:
		return false, &UnknownMarketError{
			Proposal: proposal.ID,
			Account:  acct.Key,
			Market:   acct.Market,
		}
	}
}
