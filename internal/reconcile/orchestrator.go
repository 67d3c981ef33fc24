package reconcile

import (
	"ProposalDesk/internal/chain"
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/observability"
	"ProposalDesk/internal/plan"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusy is returned when an execution for the same intent is already in
// flight. A second run would observe the same pre-execution snapshot and
// double-submit, so the caller must wait for the refetch and re-derive.
var ErrBusy = errors.New("execution already in flight for this intent")

// State of one plan execution.
type State int32

const (
	StateIdle State = iota
	StateSubmitting
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Refetcher rebases the desk on fresh chain state after a confirmed
// execution. Each refetch is a separate, independently retryable call.
type Refetcher interface {
	RefetchAccounts(ctx context.Context, owner domain.Owner) error
	RefetchBalance(ctx context.Context, mint domain.Mint) error
}

// ExecutionResult reports the outcome of one plan execution. Confirmed holds
// the subset of requests known to have landed, possibly empty; on failure it
// is never assumed to be the whole plan.
type ExecutionResult struct {
	PlanID     uuid.UUID
	Intent     string
	State      State
	Confirmed  []plan.OperationRequest
	Signatures []string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// ExecutionRecord is the audit-log form of a finished execution.
type ExecutionRecord struct {
	ExecutionID uuid.UUID
	Plan        plan.Plan
	State       State
	Confirmed   int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// AuditSink receives finished execution records. Implementations must not
// block the orchestrator; the persistence worker buffers behind a channel.
type AuditSink interface {
	Record(rec ExecutionRecord)
}

// Orchestrator executes plans for one proposal against the chain gateway.
// Building and planning stay pure; this is the only component that performs
// blocking external calls and triggers refetch side effects.
type Orchestrator struct {
	proposal domain.Proposal
	markets  domain.MarketPair

	builder   chain.TxBuilder
	submitter chain.Submitter
	refetcher Refetcher
	audit     AuditSink
	metrics   *observability.Metrics
	log       zerolog.Logger

	mu   sync.Mutex
	busy map[string]bool
}

func NewOrchestrator(
	proposal domain.Proposal,
	markets domain.MarketPair,
	builder chain.TxBuilder,
	submitter chain.Submitter,
	refetcher Refetcher,
	audit AuditSink,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		proposal:  proposal,
		markets:   markets,
		builder:   builder,
		submitter: submitter,
		refetcher: refetcher,
		audit:     audit,
		metrics:   metrics,
		log:       log,
		busy:      make(map[string]bool),
	}
}

// acquire takes the busy flag for an intent. Disjoint intents run
// concurrently; the same intent is rejected until the first run finishes.
func (o *Orchestrator) acquire(intent string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy[intent] {
		return false
	}
	o.busy[intent] = true
	return true
}

func (o *Orchestrator) release(intent string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.busy, intent)
}

// Execute submits the plan as one transaction batch and waits for the
// gateway's confirmation. Empty plans confirm immediately without touching
// the gateway. Build errors fail closed: nothing is submitted. Submission
// failures surface verbatim with the landed subset; there is no automatic
// retry, because a failed batch may have partially landed and only a refetch
// can tell.
func (o *Orchestrator) Execute(ctx context.Context, pl plan.Plan) (ExecutionResult, error) {
	result := ExecutionResult{
		PlanID:    pl.ID,
		Intent:    pl.Intent,
		State:     StateIdle,
		StartedAt: time.Now(),
	}

	if pl.Empty() {
		result.State = StateConfirmed
		result.FinishedAt = time.Now()
		return result, nil
	}

	if !o.acquire(pl.Intent) {
		return result, ErrBusy
	}
	defer o.release(pl.Intent)

	txs, perRequest, err := o.buildAll(ctx, pl)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		result.FinishedAt = time.Now()
		o.finish(pl, result)
		return result, err
	}

	result.State = StateSubmitting
	o.log.Info().
		Str("plan_id", pl.ID.String()).
		Str("intent", pl.Intent).
		Int("requests", len(pl.Requests)).
		Int("transactions", len(txs)).
		Msg("submitting plan")

	submitRes, submitErr := o.submitter.Submit(ctx, txs)
	result.Signatures = submitRes.Signatures
	result.Confirmed = confirmedRequests(pl.Requests, perRequest, submitRes.Landed)

	if submitErr != nil {
		result.State = StateFailed
		result.Err = submitErr
		result.FinishedAt = time.Now()
		o.log.Error().
			Str("plan_id", pl.ID.String()).
			Int("confirmed", len(result.Confirmed)).
			Err(submitErr).
			Msg("plan submission failed")
		o.finish(pl, result)
		return result, submitErr
	}

	result.State = StateConfirmed
	result.FinishedAt = time.Now()
	o.finish(pl, result)

	o.refetch(ctx, pl)
	return result, nil
}

// buildAll expands every request into transactions, remembering how many
// each contributed so partial submission maps back to requests.
func (o *Orchestrator) buildAll(ctx context.Context, pl plan.Plan) ([]chain.Transaction, []int, error) {
	var txs []chain.Transaction
	perRequest := make([]int, 0, len(pl.Requests))

	for i, req := range pl.Requests {
		built, err := o.buildOne(ctx, pl, req)
		if err != nil {
			return nil, nil, fmt.Errorf("build request %d (%s): %w", i, req.Type, err)
		}
		txs = append(txs, built...)
		perRequest = append(perRequest, len(built))
	}
	return txs, perRequest, nil
}

func (o *Orchestrator) buildOne(ctx context.Context, pl plan.Plan, req plan.OperationRequest) ([]chain.Transaction, error) {
	switch req.Type {
	case plan.OpCancel:
		return o.builder.CancelOrder(ctx, req.Account, req.ClientIDs, req.Market, req.IsPass)
	case plan.OpEdit:
		return o.builder.EditOrder(ctx, req.Account, chain.EditParams{
			Market:   req.Market,
			IsPass:   req.IsPass,
			ClientID: req.ClientID,
			Side:     req.Side,
			Size:     req.Size,
			Price:    req.Price,
		})
	case plan.OpSettle:
		return o.builder.SettleFunds(ctx, req.AccountNum, req.IsPass, pl.Proposal, req.Market)
	case plan.OpClose:
		return o.builder.CloseAccount(ctx, req.AccountNum)
	case plan.OpCrank:
		return o.builder.CrankMarket(ctx, req.Market)
	default:
		return nil, fmt.Errorf("unknown operation type %d", req.Type)
	}
}

// confirmedRequests maps a landed transaction prefix back to the requests
// fully covered by it.
func confirmedRequests(reqs []plan.OperationRequest, perRequest []int, landed int) []plan.OperationRequest {
	var confirmed []plan.OperationRequest
	used := 0
	for i, n := range perRequest {
		if used+n > landed {
			break
		}
		used += n
		confirmed = append(confirmed, reqs[i])
	}
	return confirmed
}

// refetch rebases state after a confirmed execution: exactly one account
// refetch, plus balance refetches for the mints of every book a settle
// touched. Refetch failures are logged, not fatal; the next snapshot from
// the feed heals them.
func (o *Orchestrator) refetch(ctx context.Context, pl plan.Plan) {
	start := time.Now()
	if err := o.refetcher.RefetchAccounts(ctx, pl.Owner); err != nil {
		o.log.Warn().Str("owner", string(pl.Owner)).Err(err).Msg("account refetch failed")
	}

	if pl.HasSettle() {
		for _, mint := range o.settledMints(pl) {
			if err := o.refetcher.RefetchBalance(ctx, mint); err != nil {
				o.log.Warn().Str("mint", string(mint)).Err(err).Msg("balance refetch failed")
			}
		}
	}

	if o.metrics != nil {
		o.metrics.RefetchDuration.Observe(time.Since(start).Seconds())
	}
}

// settledMints collects the base and quote mints of every book the plan's
// settle requests touched, deduplicated, in first-touch order.
func (o *Orchestrator) settledMints(pl plan.Plan) []domain.Mint {
	seen := make(map[domain.Mint]struct{}, 4)
	var mints []domain.Mint
	add := func(m domain.Mint) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		mints = append(mints, m)
	}

	for _, req := range pl.Requests {
		if req.Type != plan.OpSettle {
			continue
		}
		mkt := o.markets.Fail
		if req.IsPass {
			mkt = o.markets.Pass
		}
		add(mkt.BaseMint)
		add(mkt.QuoteMint)
	}
	return mints
}

func (o *Orchestrator) finish(pl plan.Plan, result ExecutionResult) {
	if o.metrics != nil {
		o.metrics.ExecutionsTotal.WithLabelValues(pl.Intent, result.State.String()).Inc()
		if result.State == StateFailed {
			o.metrics.SubmissionFailures.Inc()
		}
	}
	if o.audit != nil {
		errStr := ""
		if result.Err != nil {
			errStr = result.Err.Error()
		}
		o.audit.Record(ExecutionRecord{
			ExecutionID: uuid.New(),
			Plan:        pl,
			State:       result.State,
			Confirmed:   len(result.Confirmed),
			Error:       errStr,
			StartedAt:   result.StartedAt,
			FinishedAt:  result.FinishedAt,
		})
	}
}
