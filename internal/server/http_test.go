package server_test

import (
	"ProposalDesk/internal/chain"
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/event"
	"ProposalDesk/internal/observability"
	"ProposalDesk/internal/query"
	"ProposalDesk/internal/reconcile"
	"ProposalDesk/internal/server"
	"ProposalDesk/internal/snapshot"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// nopGateway builds one transaction per operation and lands everything.
type nopGateway struct{}

func (nopGateway) CancelOrder(ctx context.Context, acct domain.AccountKey, clientIDs []uint64, mkt domain.MarketID, isPass bool) ([]chain.Transaction, error) {
	return []chain.Transaction{{Ref: "tx"}}, nil
}

func (nopGateway) EditOrder(ctx context.Context, acct domain.AccountKey, params chain.EditParams) ([]chain.Transaction, error) {
	return []chain.Transaction{{Ref: "tx"}}, nil
}

func (nopGateway) SettleFunds(ctx context.Context, accountNum uint32, isPass bool, proposalID string, mkt domain.MarketID) ([]chain.Transaction, error) {
	return []chain.Transaction{{Ref: "tx"}}, nil
}

func (nopGateway) CloseAccount(ctx context.Context, accountNum uint32) ([]chain.Transaction, error) {
	return []chain.Transaction{{Ref: "tx"}}, nil
}

func (nopGateway) CrankMarket(ctx context.Context, mkt domain.MarketID) ([]chain.Transaction, error) {
	return []chain.Transaction{{Ref: "tx"}}, nil
}

func (nopGateway) Submit(ctx context.Context, txs []chain.Transaction) (chain.SubmitResult, error) {
	return chain.SubmitResult{Landed: len(txs)}, nil
}

type nopRefetcher struct{}

func (nopRefetcher) RefetchAccounts(ctx context.Context, owner domain.Owner) error { return nil }
func (nopRefetcher) RefetchBalance(ctx context.Context, mint domain.Mint) error    { return nil }

type nopAudit struct{}

func (nopAudit) Record(rec reconcile.ExecutionRecord) {}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := snapshot.NewStore(nil)

	store.Apply(&event.ProposalUpdate{
		Proposal: domain.Proposal{ID: "prop-1", PassMarket: "PASS-MKT", FailMarket: "FAIL-MKT"},
		Markets: domain.MarketPair{
			Pass: domain.Market{ID: "PASS-MKT", QuoteLotSize: 1},
			Fail: domain.Market{ID: "FAIL-MKT", QuoteLotSize: 10},
		},
		Slot: 1,
	})
	store.Apply(&event.AccountSnapshot{
		Owner:      "trader",
		ProposalID: "prop-1",
		Slot:       2,
		Accounts: []*domain.OpenOrdersAccount{
			{
				Key: "A1", Owner: "trader", Market: "PASS-MKT",
				Position: domain.Position{BidsBaseLots: 10},
				OpenOrders: []domain.OpenOrder{
					{ID: 1, ClientID: 7, LockedPrice: 5, Side: domain.SideBid},
				},
			},
		},
	})

	gw := nopGateway{}
	desk := reconcile.NewDesk(store, gw, gw, nopRefetcher{}, nopAudit{}, nil, zerolog.Nop())
	qs := query.NewQueryService(store, nil, nil, nil, zerolog.Nop())
	health := observability.NewHealthChecker()
	health.SetReady(true)

	// Build the server for its router only; the listener is never started.
	s := server.NewHTTPServer(":0", desk, qs, health, nil, zerolog.Nop())
	return s.Handler()
}

func TestHTTP_Summary(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/proposals/prop-1/owners/trader/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var summary query.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Open != 1 || len(summary.Accounts) != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestHTTP_SummaryUnknownProposal(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/proposals/prop-x/owners/trader/summary", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHTTP_IntentDryRun(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/proposals/prop-1/owners/trader/intents/cancel-all?dry_run=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var reply struct {
		Intent   string            `json:"intent"`
		Requests []json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Intent != "cancel-all" || len(reply.Requests) != 1 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestHTTP_IntentExecute(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/proposals/prop-1/owners/trader/intents/cancel-all", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var reply struct {
		State     string `json:"state"`
		Confirmed int    `json:"confirmed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.State != "confirmed" || reply.Confirmed != 1 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestHTTP_UnknownIntentIs404(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/proposals/prop-1/owners/trader/intents/bogus", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHTTP_EditStaging(t *testing.T) {
	h := newTestHandler(t)

	body := strings.NewReader(`{"size": 25}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut,
		"/v1/proposals/prop-1/owners/trader/edits/A1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("stage: status = %d, want 200", rec.Code)
	}

	// The staged size flows into a dry-run edit plan.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/proposals/prop-1/owners/trader/intents/edit-order?dry_run=1",
		strings.NewReader(`{"account": "A1", "client_id": 7}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("dry run: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var reply struct {
		Requests []struct {
			Size int64 `json:"Size"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reply.Requests) != 1 || reply.Requests[0].Size != 25 {
		t.Errorf("reply = %+v, want staged size 25", reply)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete,
		"/v1/proposals/prop-1/owners/trader/edits/A1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("clear: status = %d, want 200", rec.Code)
	}
}

func TestHTTP_Health(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}
