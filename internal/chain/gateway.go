package chain

import (
	"ProposalDesk/internal/domain"
	"context"
	"encoding/json"
	"fmt"
)

// The chain gateway is the desk's only door to the order-book program.
// Wallets, signing, and RPC live behind it; the desk hands over operation
// parameters and gets back opaque transactions to submit.

// Transaction is an unsigned transaction produced by the builder sidecar.
// The desk never inspects the payload.
type Transaction struct {
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

// EditParams carries the replacement limit order of a cancel-then-replace.
type EditParams struct {
	Market   domain.MarketID `json:"market"`
	IsPass   bool            `json:"is_pass"`
	ClientID int64           `json:"client_id"`
	Side     domain.Side     `json:"side"`
	Size     int64           `json:"size"`
	Price    int64           `json:"price"`
}

// TxBuilder builds transactions for the desk's operations. A single logical
// operation may expand to several transactions (e.g. settle plus an
// associated-token-account create).
type TxBuilder interface {
	CancelOrder(ctx context.Context, acct domain.AccountKey, clientIDs []uint64, mkt domain.MarketID, isPass bool) ([]Transaction, error)
	EditOrder(ctx context.Context, acct domain.AccountKey, params EditParams) ([]Transaction, error)
	// SettleFunds may return no transactions when there is nothing to settle;
	// the desk pre-filters but the interface tolerates redundant calls.
	SettleFunds(ctx context.Context, accountNum uint32, isPass bool, proposalID string, mkt domain.MarketID) ([]Transaction, error)
	CloseAccount(ctx context.Context, accountNum uint32) ([]Transaction, error)
	CrankMarket(ctx context.Context, mkt domain.MarketID) ([]Transaction, error)
}

// SubmitResult reports how much of a batch is known to have landed.
// Landed counts a prefix of the submitted batch; the transport confirms
// transactions in order.
type SubmitResult struct {
	Landed     int
	Signatures []string
}

// Submitter sends an ordered transaction batch for signing and confirmation.
// Partial-batch failure is possible: on error the returned result still
// carries the landed prefix so the caller can re-derive state instead of
// assuming all-or-nothing.
type Submitter interface {
	Submit(ctx context.Context, txs []Transaction) (SubmitResult, error)
}

// SubmissionError wraps a transport failure together with the landed prefix.
type SubmissionError struct {
	Landed int
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed after %d landed transaction(s): %v", e.Landed, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
