package ingestion

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/event"
	"encoding/json"
	"fmt"
	"time"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell parses and validates before anything
// reaches the snapshot store.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "AccountSnapshot":
		return parseAccountSnapshot(raw.Data)
	case "ProposalUpdate":
		return parseProposalUpdate(raw.Data)
	case "UncrankedList":
		return parseUncrankedList(raw.Data)
	case "BalanceUpdate":
		return parseBalanceUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match the indexer.

type positionJSON struct {
	BidsBaseLots    int64 `json:"bids_base_lots"`
	AsksBaseLots    int64 `json:"asks_base_lots"`
	BaseFreeNative  int64 `json:"base_free_native"`
	QuoteFreeNative int64 `json:"quote_free_native"`
}

type openOrderJSON struct {
	ID          uint64 `json:"id"`
	ClientID    uint64 `json:"client_id"`
	LockedPrice int64  `json:"locked_price"`
	Side        string `json:"side"` // "bid" or "ask"
}

type accountJSON struct {
	Key        string          `json:"key"`
	AccountNum uint32          `json:"account_num"`
	Market     string          `json:"market"`
	Position   positionJSON    `json:"position"`
	OpenOrders []openOrderJSON `json:"open_orders"`
}

type accountSnapshotJSON struct {
	Owner       string        `json:"owner"`
	Proposal    string        `json:"proposal"`
	Accounts    []accountJSON `json:"accounts"`
	Slot        int64         `json:"slot"`
	TimestampUs int64         `json:"timestamp_us"`
}

type marketJSON struct {
	ID           string `json:"id"`
	BaseMint     string `json:"base_mint"`
	QuoteMint    string `json:"quote_mint"`
	BaseLotSize  int64  `json:"base_lot_size"`
	QuoteLotSize int64  `json:"quote_lot_size"`
}

type proposalUpdateJSON struct {
	Proposal    string     `json:"proposal"`
	PassMarket  marketJSON `json:"pass_market"`
	FailMarket  marketJSON `json:"fail_market"`
	Slot        int64      `json:"slot"`
	TimestampUs int64      `json:"timestamp_us"`
}

type uncrankedListJSON struct {
	Proposal    string   `json:"proposal"`
	Accounts    []string `json:"accounts"`
	Slot        int64    `json:"slot"`
	TimestampUs int64    `json:"timestamp_us"`
}

type balanceUpdateJSON struct {
	Owner       string `json:"owner"`
	Mint        string `json:"mint"`
	Amount      int64  `json:"amount"`
	Slot        int64  `json:"slot"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSide(s string) (domain.Side, error) {
	switch s {
	case "bid":
		return domain.SideBid, nil
	case "ask":
		return domain.SideAsk, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseAccountSnapshot(data []byte) (*event.AccountSnapshot, error) {
	var j accountSnapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AccountSnapshot: %w", err)
	}
	if j.Owner == "" {
		return nil, fmt.Errorf("parse AccountSnapshot: missing owner")
	}
	if j.Proposal == "" {
		return nil, fmt.Errorf("parse AccountSnapshot: missing proposal")
	}

	accounts := make([]*domain.OpenOrdersAccount, 0, len(j.Accounts))
	for i, a := range j.Accounts {
		if a.Key == "" {
			return nil, fmt.Errorf("parse AccountSnapshot: account %d missing key", i)
		}
		orders := make([]domain.OpenOrder, 0, len(a.OpenOrders))
		for _, o := range a.OpenOrders {
			side, err := parseSide(o.Side)
			if err != nil {
				return nil, fmt.Errorf("parse AccountSnapshot: account %s: %w", a.Key, err)
			}
			orders = append(orders, domain.OpenOrder{
				ID:          o.ID,
				ClientID:    o.ClientID,
				LockedPrice: o.LockedPrice,
				Side:        side,
			})
		}
		accounts = append(accounts, &domain.OpenOrdersAccount{
			Key:        domain.AccountKey(a.Key),
			Owner:      domain.Owner(j.Owner),
			Market:     domain.MarketID(a.Market),
			AccountNum: a.AccountNum,
			Position: domain.Position{
				BidsBaseLots:    a.Position.BidsBaseLots,
				AsksBaseLots:    a.Position.AsksBaseLots,
				BaseFreeNative:  a.Position.BaseFreeNative,
				QuoteFreeNative: a.Position.QuoteFreeNative,
			},
			OpenOrders: orders,
		})
	}

	return &event.AccountSnapshot{
		Owner:      domain.Owner(j.Owner),
		ProposalID: j.Proposal,
		Accounts:   accounts,
		Slot:       j.Slot,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

func toMarket(j marketJSON) domain.Market {
	return domain.Market{
		ID:           domain.MarketID(j.ID),
		BaseMint:     domain.Mint(j.BaseMint),
		QuoteMint:    domain.Mint(j.QuoteMint),
		BaseLotSize:  j.BaseLotSize,
		QuoteLotSize: j.QuoteLotSize,
	}
}

func parseProposalUpdate(data []byte) (*event.ProposalUpdate, error) {
	var j proposalUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProposalUpdate: %w", err)
	}
	if j.Proposal == "" {
		return nil, fmt.Errorf("parse ProposalUpdate: missing proposal")
	}
	if j.PassMarket.ID == "" || j.FailMarket.ID == "" {
		return nil, fmt.Errorf("parse ProposalUpdate: missing market ids")
	}
	if j.PassMarket.ID == j.FailMarket.ID {
		return nil, fmt.Errorf("parse ProposalUpdate: pass and fail markets are identical")
	}

	return &event.ProposalUpdate{
		Proposal: domain.Proposal{
			ID:         j.Proposal,
			PassMarket: domain.MarketID(j.PassMarket.ID),
			FailMarket: domain.MarketID(j.FailMarket.ID),
		},
		Markets: domain.MarketPair{
			Pass: toMarket(j.PassMarket),
			Fail: toMarket(j.FailMarket),
		},
		Slot:      j.Slot,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseUncrankedList(data []byte) (*event.UncrankedList, error) {
	var j uncrankedListJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UncrankedList: %w", err)
	}
	if j.Proposal == "" {
		return nil, fmt.Errorf("parse UncrankedList: missing proposal")
	}

	accounts := make([]domain.AccountKey, 0, len(j.Accounts))
	for _, k := range j.Accounts {
		accounts = append(accounts, domain.AccountKey(k))
	}

	return &event.UncrankedList{
		ProposalID: j.Proposal,
		Accounts:   accounts,
		Slot:       j.Slot,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseBalanceUpdate(data []byte) (*event.BalanceUpdate, error) {
	var j balanceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BalanceUpdate: %w", err)
	}
	if j.Owner == "" || j.Mint == "" {
		return nil, fmt.Errorf("parse BalanceUpdate: missing owner or mint")
	}

	return &event.BalanceUpdate{
		Owner:     domain.Owner(j.Owner),
		Mint:      domain.Mint(j.Mint),
		Amount:    j.Amount,
		Slot:      j.Slot,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
