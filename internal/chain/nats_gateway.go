package chain

import (
	"ProposalDesk/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSGateway implements TxBuilder and Submitter over NATS request/reply
// against the signer sidecar. The sidecar owns the wallet keys and the RPC
// connection; the desk only ships operation parameters and receives opaque
// transactions back.
//
// Subjects:
//
//	desk.tx.build.cancel | edit | settle | close | crank
//	desk.tx.submit
type NATSGateway struct {
	nc      *nats.Conn
	timeout time.Duration
	log     zerolog.Logger
}

func NewNATSGateway(nc *nats.Conn, timeout time.Duration, log zerolog.Logger) *NATSGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATSGateway{nc: nc, timeout: timeout, log: log}
}

// --- wire formats ---

type cancelRequestJSON struct {
	Account   string   `json:"account"`
	ClientIDs []uint64 `json:"client_ids"`
	Market    string   `json:"market"`
	IsPass    bool     `json:"is_pass"`
}

type settleRequestJSON struct {
	AccountNum uint32 `json:"account_num"`
	IsPass     bool   `json:"is_pass"`
	Proposal   string `json:"proposal"`
	Market     string `json:"market"`
}

type closeRequestJSON struct {
	AccountNum uint32 `json:"account_num"`
}

type crankRequestJSON struct {
	Market string `json:"market"`
}

type buildReplyJSON struct {
	Transactions []Transaction `json:"transactions"`
	Error        string        `json:"error,omitempty"`
}

type submitRequestJSON struct {
	Transactions []Transaction `json:"transactions"`
}

type submitReplyJSON struct {
	Landed     int      `json:"landed"`
	Signatures []string `json:"signatures,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func (g *NATSGateway) build(ctx context.Context, subject string, req interface{}) ([]Transaction, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}

	var reply buildReplyJSON
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", subject, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%s: sidecar: %s", subject, reply.Error)
	}
	return reply.Transactions, nil
}

func (g *NATSGateway) CancelOrder(ctx context.Context, acct domain.AccountKey, clientIDs []uint64, mkt domain.MarketID, isPass bool) ([]Transaction, error) {
	return g.build(ctx, "desk.tx.build.cancel", cancelRequestJSON{
		Account:   string(acct),
		ClientIDs: clientIDs,
		Market:    string(mkt),
		IsPass:    isPass,
	})
}

func (g *NATSGateway) EditOrder(ctx context.Context, acct domain.AccountKey, params EditParams) ([]Transaction, error) {
	req := struct {
		Account string `json:"account"`
		EditParams
	}{Account: string(acct), EditParams: params}
	return g.build(ctx, "desk.tx.build.edit", req)
}

func (g *NATSGateway) SettleFunds(ctx context.Context, accountNum uint32, isPass bool, proposalID string, mkt domain.MarketID) ([]Transaction, error) {
	return g.build(ctx, "desk.tx.build.settle", settleRequestJSON{
		AccountNum: accountNum,
		IsPass:     isPass,
		Proposal:   proposalID,
		Market:     string(mkt),
	})
}

func (g *NATSGateway) CloseAccount(ctx context.Context, accountNum uint32) ([]Transaction, error) {
	return g.build(ctx, "desk.tx.build.close", closeRequestJSON{AccountNum: accountNum})
}

func (g *NATSGateway) CrankMarket(ctx context.Context, mkt domain.MarketID) ([]Transaction, error) {
	return g.build(ctx, "desk.tx.build.crank", crankRequestJSON{Market: string(mkt)})
}

// Submit ships the batch to the sidecar and waits for confirmation. The
// sidecar signs and sends transactions in order and reports how many landed;
// on failure the landed prefix comes back inside a SubmissionError.
func (g *NATSGateway) Submit(ctx context.Context, txs []Transaction) (SubmitResult, error) {
	if len(txs) == 0 {
		return SubmitResult{}, nil
	}

	data, err := json.Marshal(submitRequestJSON{Transactions: txs})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshal submit: %w", err)
	}

	// No desk-owned timeout beyond the request round-trip: confirmation
	// policy belongs to the sidecar.
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.nc.RequestWithContext(ctx, "desk.tx.submit", data)
	if err != nil {
		return SubmitResult{}, &SubmissionError{Landed: 0, Err: err}
	}

	var reply submitReplyJSON
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return SubmitResult{}, &SubmissionError{Landed: 0, Err: fmt.Errorf("decode submit reply: %w", err)}
	}

	result := SubmitResult{Landed: reply.Landed, Signatures: reply.Signatures}
	if reply.Error != "" {
		g.log.Warn().Int("landed", reply.Landed).Str("error", reply.Error).Msg("partial batch failure")
		return result, &SubmissionError{Landed: reply.Landed, Err: errors.New(reply.Error)}
	}
	return result, nil
}
