package persistence

import (
	"ProposalDesk/internal/observability"
	"ProposalDesk/internal/reconcile"
	"context"
	"database/sql"
	"log"
	"time"
)

// AuditWorker drains execution records from a channel and flushes them to
// Postgres in batches. Records are buffered up to batchSize or flushTimeout,
// whichever comes first. A full channel drops the record rather than blocking
// the orchestrator; the audit log is an investigation aid, not the source of
// truth.
type AuditWorker struct {
	writer       *AuditWriter
	in           chan reconcile.ExecutionRecord
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewAuditWorker(db *sql.DB, chanSize, batchSize int, flushTimeout time.Duration, metrics *observability.Metrics) *AuditWorker {
	if batchSize <= 0 {
		batchSize = 16
	}
	if flushTimeout <= 0 {
		flushTimeout = 500 * time.Millisecond
	}
	return &AuditWorker{
		writer:       NewAuditWriter(db),
		in:           make(chan reconcile.ExecutionRecord, chanSize),
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Record implements reconcile.AuditSink. Non-blocking.
func (w *AuditWorker) Record(rec reconcile.ExecutionRecord) {
	select {
	case w.in <- rec:
	default:
		log.Printf("WARN: audit channel full, dropping execution %s", rec.ExecutionID)
		if w.metrics != nil {
			w.metrics.AuditErrors.Inc()
		}
	}
}

// Run consumes records until the context is cancelled, flushing a final
// partial batch on shutdown.
func (w *AuditWorker) Run(ctx context.Context) error {
	batch := make([]reconcile.ExecutionRecord, 0, w.batchSize)
	ticker := time.NewTicker(w.flushTimeout)
	defer ticker.Stop()

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}
		w.flushBatch(flushCtx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutCtx)
			cancel()
			return ctx.Err()

		case rec, ok := <-w.in:
			if !ok {
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				flush(shutCtx)
				cancel()
				return nil
			}
			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (w *AuditWorker) flushBatch(ctx context.Context, batch []reconcile.ExecutionRecord) {
	start := time.Now()

	execRows := make([]ExecutionRow, 0, len(batch))
	var reqRows []RequestRow
	for _, rec := range batch {
		exec, reqs := RowsFromRecord(rec)
		execRows = append(execRows, exec)
		reqRows = append(reqRows, reqs...)
	}

	if err := w.writer.WriteExecutions(ctx, execRows); err != nil {
		log.Printf("ERROR: write executions: %v", err)
		if w.metrics != nil {
			w.metrics.AuditErrors.Inc()
		}
		return
	}
	if err := w.writer.WriteRequests(ctx, reqRows); err != nil {
		log.Printf("ERROR: write execution requests: %v", err)
		if w.metrics != nil {
			w.metrics.AuditErrors.Inc()
		}
		return
	}

	if w.metrics != nil {
		w.metrics.AuditRowsWritten.Add(float64(len(execRows) + len(reqRows)))
		w.metrics.AuditBatchDur.Observe(time.Since(start).Seconds())
	}
}
