package reconcile

import (
	"ProposalDesk/internal/chain"
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/lifecycle"
	"ProposalDesk/internal/market"
	"ProposalDesk/internal/observability"
	"ProposalDesk/internal/plan"
	"ProposalDesk/internal/snapshot"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Intent names accepted by the desk.
const (
	IntentCancelAll      = "cancel-all"
	IntentCancelOrder    = "cancel-order"
	IntentEditOrder      = "edit-order"
	IntentSettleAll      = "settle-all"
	IntentSettleAccount  = "settle-account"
	IntentCrank          = "crank"
	IntentCloseAll       = "close-all"
	IntentCloseAllButOne = "close-all-but-one"
)

// Scope restricts an intent to one book or both.
const (
	ScopePass = "pass"
	ScopeFail = "fail"
	ScopeAll  = "all"
)

var (
	ErrUnknownIntent   = errors.New("unknown intent")
	ErrUnknownProposal = errors.New("unknown proposal")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownOrder    = errors.New("unknown order")
)

// IntentRequest is a desk intent with its parameters. Account, ClientID,
// Size, and Price only apply to the single-order intents.
type IntentRequest struct {
	Intent   string
	Owner    domain.Owner
	Proposal string
	Scope    string
	Account  domain.AccountKey
	ClientID uint64
	Size     *int64
	Price    *int64
}

// Desk binds the snapshot store to plan building and execution. One
// orchestrator exists per proposal, so busy flags and refetches are scoped to
// the proposal they belong to.
type Desk struct {
	store     *snapshot.Store
	txBuilder chain.TxBuilder
	submitter chain.Submitter
	refetcher Refetcher
	audit     AuditSink
	sessions  *EditSessionStore
	metrics   *observability.Metrics
	log       zerolog.Logger

	orchestrators *orchestratorSet
}

func NewDesk(
	store *snapshot.Store,
	txBuilder chain.TxBuilder,
	submitter chain.Submitter,
	refetcher Refetcher,
	audit AuditSink,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Desk {
	return &Desk{
		store:         store,
		txBuilder:     txBuilder,
		submitter:     submitter,
		refetcher:     refetcher,
		audit:         audit,
		sessions:      NewEditSessionStore(),
		metrics:       metrics,
		log:           log,
		orchestrators: newOrchestratorSet(),
	}
}

// Sessions exposes the edit-session store for the API layer.
func (d *Desk) Sessions() *EditSessionStore { return d.sessions }

// PlanIntent builds the plan for an intent without executing it. Planning is
// pure and repeatable; callers may preview freely.
func (d *Desk) PlanIntent(req IntentRequest) (plan.Plan, error) {
	proposal, markets, ok := d.store.Proposal(req.Proposal)
	if !ok {
		return plan.Plan{}, fmt.Errorf("%w: %s", ErrUnknownProposal, req.Proposal)
	}

	accts := d.store.AccountsFor(req.Owner, req.Proposal)
	uncranked := d.store.UncrankedFor(req.Proposal)
	builder := plan.NewBuilder(proposal, markets)

	scoped, err := filterScope(proposal, accts, req.Scope)
	if err != nil {
		return plan.Plan{}, err
	}

	var reqs []plan.OperationRequest
	switch req.Intent {
	case IntentCancelAll:
		reqs, err = builder.CancelAll(scoped)

	case IntentCancelOrder:
		acct, ord, findErr := findOrder(accts, req.Account, req.ClientID)
		if findErr != nil {
			return plan.Plan{}, findErr
		}
		reqs, err = builder.Cancel(acct, ord)

	case IntentEditOrder:
		acct, ord, findErr := findOrder(accts, req.Account, req.ClientID)
		if findErr != nil {
			return plan.Plan{}, findErr
		}
		size, price := req.Size, req.Price
		if sess, ok := d.sessions.Get(req.Account); ok {
			if size == nil {
				size = sess.EditedSize
			}
			if price == nil {
				price = sess.EditedPrice
			}
		}
		reqs, err = builder.Edit(acct, ord, size, price)

	case IntentSettleAll:
		reqs, err = builder.Settle(scoped)

	case IntentSettleAccount:
		acct, findErr := findAccount(accts, req.Account)
		if findErr != nil {
			return plan.Plan{}, findErr
		}
		reqs, err = builder.Settle([]*domain.OpenOrdersAccount{acct})

	case IntentCrank:
		switch req.Scope {
		case ScopePass:
			reqs = []plan.OperationRequest{builder.Crank(true)}
		case ScopeFail:
			reqs = []plan.OperationRequest{builder.Crank(false)}
		default:
			reqs = builder.CrankBoth()
		}

	case IntentCloseAll:
		reqs = plan.CloseAll(scoped, uncranked)

	case IntentCloseAllButOne:
		reqs = plan.CloseAllButOne(scoped, uncranked)

	default:
		return plan.Plan{}, fmt.Errorf("%w: %s", ErrUnknownIntent, req.Intent)
	}
	if err != nil {
		return plan.Plan{}, err
	}

	pl := plan.New(intentKey(req), req.Owner, req.Proposal, reqs)
	if d.metrics != nil {
		d.metrics.PlansBuilt.WithLabelValues(req.Intent).Inc()
		d.metrics.PlanRequests.Observe(float64(len(pl.Requests)))
	}
	return pl, nil
}

// ExecuteIntent plans and executes in one go. A successful edit clears the
// account's staged session.
func (d *Desk) ExecuteIntent(ctx context.Context, req IntentRequest) (ExecutionResult, error) {
	pl, err := d.PlanIntent(req)
	if err != nil {
		return ExecutionResult{}, err
	}

	proposal, markets, _ := d.store.Proposal(req.Proposal)
	orch := d.orchestrators.get(proposal, markets, d)

	result, err := orch.Execute(ctx, pl)
	if err == nil && req.Intent == IntentEditOrder {
		d.sessions.Clear(req.Account)
	}
	return result, err
}

// intentKey scopes the busy flag: the same intent for the same owner and
// scope is serialized, disjoint intents run concurrently.
func intentKey(req IntentRequest) string {
	key := fmt.Sprintf("%s:%s", req.Intent, req.Owner)
	if req.Scope != "" {
		key += ":" + req.Scope
	}
	if req.Account != "" {
		key += ":" + string(req.Account)
	}
	return key
}

// filterScope keeps the accounts on the requested book. An account on
// neither book fails the whole plan.
func filterScope(proposal domain.Proposal, accts []*domain.OpenOrdersAccount, scope string) ([]*domain.OpenOrdersAccount, error) {
	if scope == "" || scope == ScopeAll {
		return accts, nil
	}
	if scope != ScopePass && scope != ScopeFail {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}

	var out []*domain.OpenOrdersAccount
	for _, acct := range accts {
		pass, err := market.IsPass(proposal, acct)
		if err != nil {
			return nil, err
		}
		if pass == (scope == ScopePass) {
			out = append(out, acct)
		}
	}
	return out, nil
}

func findAccount(accts []*domain.OpenOrdersAccount, key domain.AccountKey) (*domain.OpenOrdersAccount, error) {
	for _, acct := range accts {
		if acct.Key == key {
			return acct, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, key)
}

func findOrder(accts []*domain.OpenOrdersAccount, key domain.AccountKey, clientID uint64) (*domain.OpenOrdersAccount, domain.OpenOrder, error) {
	acct, err := findAccount(accts, key)
	if err != nil {
		return nil, domain.OpenOrder{}, err
	}
	for _, ord := range acct.OpenOrders {
		if ord.ClientID == clientID {
			return acct, ord, nil
		}
	}
	return nil, domain.OpenOrder{}, fmt.Errorf("%w: client id %d on account %s", ErrUnknownOrder, clientID, key)
}

// NeedsSettleAny mirrors the settle-all button's enablement: true when any
// account still holds free balances.
func NeedsSettleAny(accts []*domain.OpenOrdersAccount) bool {
	for _, acct := range accts {
		if lifecycle.NeedsSettle(acct) {
			return true
		}
	}
	return false
}
