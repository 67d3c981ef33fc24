package persistence

import (
	"ProposalDesk/internal/plan"
	"ProposalDesk/internal/reconcile"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Execution audit log. Every finished plan execution lands in Postgres with
// its per-request breakdown, so a failed or partially-landed batch can be
// investigated after the snapshots it was built from are gone.

// ExecutionRow is a row in desk.executions.
type ExecutionRow struct {
	ExecutionID string
	PlanID      string
	Intent      string
	Owner       string
	Proposal    string
	State       string
	Requests    int
	Confirmed   int
	Error       string
	StartedAt   int64 // unix micros
	FinishedAt  int64
}

// RequestRow is a row in desk.execution_requests.
type RequestRow struct {
	ExecutionID string
	Idx         int
	OpType      string
	AccountKey  string
	AccountNum  int64
	Market      string
	IsPass      bool
	ClientIDs   []int64
	Side        string
	Size        int64
	Price       int64
	Confirmed   bool
}

// AuditWriter writes execution audit rows using multi-row INSERTs.
type AuditWriter struct {
	db *sql.DB
}

func NewAuditWriter(db *sql.DB) *AuditWriter {
	return &AuditWriter{db: db}
}

// WriteExecutions inserts a batch of execution rows. Conflicts on
// execution_id are ignored so redelivered records stay idempotent.
func (w *AuditWriter) WriteExecutions(ctx context.Context, rows []ExecutionRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO desk.executions
		(execution_id, plan_id, intent, owner, proposal, state, requests_total, requests_confirmed, error, started_at_us, finished_at_us)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*11)

	for i, r := range rows {
		base := i * 11
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			r.ExecutionID, r.PlanID, r.Intent, r.Owner, r.Proposal, r.State,
			r.Requests, r.Confirmed, r.Error, r.StartedAt, r.FinishedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (execution_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// WriteRequests inserts the per-request rows of a batch of executions.
func (w *AuditWriter) WriteRequests(ctx context.Context, rows []RequestRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO desk.execution_requests
		(execution_id, idx, op_type, account_key, account_num, market, is_pass, client_ids, side, size, price, confirmed)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*12)

	for i, r := range rows {
		base := i * 12
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11, base+12,
		))
		args = append(args,
			r.ExecutionID, r.Idx, r.OpType, r.AccountKey, r.AccountNum, r.Market,
			r.IsPass, pq.Array(r.ClientIDs), r.Side, r.Size, r.Price, r.Confirmed,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (execution_id, idx) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// RowsFromRecord flattens an execution record into audit rows.
func RowsFromRecord(rec reconcile.ExecutionRecord) (ExecutionRow, []RequestRow) {
	exec := ExecutionRow{
		ExecutionID: rec.ExecutionID.String(),
		PlanID:      rec.Plan.ID.String(),
		Intent:      rec.Plan.Intent,
		Owner:       string(rec.Plan.Owner),
		Proposal:    rec.Plan.Proposal,
		State:       rec.State.String(),
		Requests:    len(rec.Plan.Requests),
		Confirmed:   rec.Confirmed,
		Error:       rec.Error,
		StartedAt:   rec.StartedAt.UnixMicro(),
		FinishedAt:  rec.FinishedAt.UnixMicro(),
	}

	reqs := make([]RequestRow, 0, len(rec.Plan.Requests))
	for i, r := range rec.Plan.Requests {
		clientIDs := make([]int64, 0, len(r.ClientIDs))
		for _, id := range r.ClientIDs {
			clientIDs = append(clientIDs, int64(id))
		}
		row := RequestRow{
			ExecutionID: rec.ExecutionID.String(),
			Idx:         i,
			OpType:      r.Type.String(),
			AccountKey:  string(r.Account),
			AccountNum:  int64(r.AccountNum),
			Market:      string(r.Market),
			IsPass:      r.IsPass,
			ClientIDs:   clientIDs,
			Size:        r.Size,
			Price:       r.Price,
			Confirmed:   i < rec.Confirmed,
		}
		if r.Type == plan.OpEdit {
			row.Side = r.Side.String()
		}
		reqs = append(reqs, row)
	}
	return exec, reqs
}
