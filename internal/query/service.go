package query

import (
	"ProposalDesk/internal/cache"
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/lifecycle"
	"ProposalDesk/internal/market"
	deskmath "ProposalDesk/internal/math"
	"ProposalDesk/internal/observability"
	"ProposalDesk/internal/snapshot"
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// QueryService builds read models from the snapshot store and the audit log.
// Summaries are computed on demand and written through to Redis for
// out-of-process readers.
type QueryService struct {
	store   *snapshot.Store
	db      *sql.DB
	cache   *cache.SummaryCache
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewQueryService(
	store *snapshot.Store,
	db *sql.DB,
	summaryCache *cache.SummaryCache,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *QueryService {
	return &QueryService{
		store:   store,
		db:      db,
		cache:   summaryCache,
		metrics: metrics,
		log:     log,
	}
}

// Summary classifies every known account of the owner on a proposal and
// aggregates per-book totals. Fails when the proposal is unknown or an
// account resolves to neither book.
func (qs *QueryService) Summary(ctx context.Context, owner domain.Owner, proposalID string) (*Summary, error) {
	proposal, markets, ok := qs.store.Proposal(proposalID)
	if !ok {
		return nil, fmt.Errorf("unknown proposal %s", proposalID)
	}

	accts := qs.store.AccountsFor(owner, proposalID)
	uncranked := qs.store.UncrankedFor(proposalID)

	totals, err := lifecycle.Aggregate(accts, proposal, markets)
	if err != nil {
		return nil, err
	}
	combined := totals.Combined()

	summary := &Summary{
		Owner:    string(owner),
		Proposal: proposalID,
		AsOfSlot: qs.store.AppliedSlot(fmt.Sprintf("accounts:%s:%s", owner, proposalID)),
		Pass:     MarketTotals{SizeLots: totals.Pass.Size, NotionalNative: totals.Pass.Notional},
		Fail:     MarketTotals{SizeLots: totals.Fail.Size, NotionalNative: totals.Fail.Notional},
		Combined: MarketTotals{SizeLots: combined.Size, NotionalNative: combined.Notional},
		Accounts: make([]AccountView, 0, len(accts)),
	}

	for _, acct := range accts {
		res, err := market.Resolve(proposal, markets, acct)
		if err != nil {
			return nil, err
		}

		status := lifecycle.Classify(acct, uncranked)
		if qs.metrics != nil {
			qs.metrics.AccountsClassified.WithLabelValues(status.String()).Inc()
		}
		switch status {
		case lifecycle.StatusOpen:
			summary.Open++
		case lifecycle.StatusPartiallyFilled:
			summary.Unsettled++
		case lifecycle.StatusUncranked:
			summary.Uncranked++
		case lifecycle.StatusClosable:
			summary.Closable++
		}

		view := AccountView{
			Key:             string(acct.Key),
			AccountNum:      acct.AccountNum,
			Market:          string(res.Market.ID),
			Pass:            res.IsPass,
			Status:          status.String(),
			BidsBaseLots:    acct.Position.BidsBaseLots,
			AsksBaseLots:    acct.Position.AsksBaseLots,
			BaseFreeNative:  acct.Position.BaseFreeNative,
			QuoteFreeNative: acct.Position.QuoteFreeNative,
			Orders:          make([]OrderView, 0, len(acct.OpenOrders)),
		}
		for _, ord := range acct.OpenOrders {
			size := acct.RestingSize(ord.Side)
			view.Orders = append(view.Orders, OrderView{
				OrderID:        ord.ID,
				ClientID:       ord.ClientID,
				Side:           ord.Side.String(),
				SizeLots:       size,
				PriceLots:      ord.LockedPrice,
				PriceNative:    deskmath.PriceNative(ord.LockedPrice, res.Market.QuoteLotSize),
				NotionalNative: deskmath.Notional(size, ord.LockedPrice, res.Market.QuoteLotSize),
			})
		}
		summary.Accounts = append(summary.Accounts, view)
	}

	qs.writeThrough(ctx, summary)
	return summary, nil
}

// CachedSummary serves the Redis copy when fresh, recomputing on a miss.
func (qs *QueryService) CachedSummary(ctx context.Context, owner domain.Owner, proposalID string) (*Summary, error) {
	if qs.cache != nil {
		var cached Summary
		hit, err := qs.cache.Get(ctx, string(owner), proposalID, &cached)
		if err != nil {
			qs.log.Warn().Err(err).Msg("summary cache read failed")
			if qs.metrics != nil {
				qs.metrics.CacheErrors.Inc()
			}
		} else if hit {
			return &cached, nil
		}
	}
	return qs.Summary(ctx, owner, proposalID)
}

func (qs *QueryService) writeThrough(ctx context.Context, summary *Summary) {
	if qs.cache == nil {
		return
	}
	if err := qs.cache.Put(ctx, summary.Owner, summary.Proposal, summary); err != nil {
		qs.log.Warn().Err(err).Msg("summary cache write failed")
		if qs.metrics != nil {
			qs.metrics.CacheErrors.Inc()
		}
		return
	}
	if qs.metrics != nil {
		qs.metrics.CacheUpdates.Inc()
	}
}

// ExecutionHistory returns the owner's most recent executions, newest first.
func (qs *QueryService) ExecutionHistory(ctx context.Context, owner domain.Owner, limit int) ([]ExecutionSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT execution_id, plan_id, intent, proposal, state,
		       requests_total, requests_confirmed, error, started_at_us, finished_at_us
		FROM desk.executions
		WHERE owner = $1
		ORDER BY started_at_us DESC
		LIMIT $2`,
		string(owner), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []ExecutionSummary
	for rows.Next() {
		var e ExecutionSummary
		if err := rows.Scan(
			&e.ExecutionID, &e.PlanID, &e.Intent, &e.Proposal, &e.State,
			&e.Requests, &e.Confirmed, &e.Error, &e.StartedAtUs, &e.FinishedAtUs,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
