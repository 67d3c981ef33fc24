package ingestion

import (
	"ProposalDesk/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// RefetchPublisher asks the indexer for fresh state after a confirmed
// execution. Requests go out on desk.refetch.*; the indexer answers by
// publishing new snapshots on the regular feed subjects, so the refreshed
// data flows back through the normal ingestion path.
type RefetchPublisher struct {
	nc *nats.Conn
}

func NewRefetchPublisher(nc *nats.Conn) *RefetchPublisher {
	return &RefetchPublisher{nc: nc}
}

type refetchAccountsJSON struct {
	Owner       string `json:"owner"`
	RequestedUs int64  `json:"requested_us"`
}

type refetchBalanceJSON struct {
	Mint        string `json:"mint"`
	RequestedUs int64  `json:"requested_us"`
}

// RefetchAccounts requests a fresh account snapshot for an owner.
func (p *RefetchPublisher) RefetchAccounts(ctx context.Context, owner domain.Owner) error {
	data, err := json.Marshal(refetchAccountsJSON{
		Owner:       string(owner),
		RequestedUs: time.Now().UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("marshal refetch accounts: %w", err)
	}
	if err := p.nc.Publish(fmt.Sprintf("desk.refetch.accounts.%s", owner), data); err != nil {
		return fmt.Errorf("publish refetch accounts: %w", err)
	}
	return nil
}

// RefetchBalance requests a fresh wallet balance for a mint.
func (p *RefetchPublisher) RefetchBalance(ctx context.Context, mint domain.Mint) error {
	data, err := json.Marshal(refetchBalanceJSON{
		Mint:        string(mint),
		RequestedUs: time.Now().UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("marshal refetch balance: %w", err)
	}
	if err := p.nc.Publish(fmt.Sprintf("desk.refetch.balance.%s", mint), data); err != nil {
		return fmt.Errorf("publish refetch balance: %w", err)
	}
	return nil
}
