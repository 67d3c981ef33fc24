package server

import (
	"ProposalDesk/internal/domain"
	"ProposalDesk/internal/observability"
	"ProposalDesk/internal/query"
	"ProposalDesk/internal/reconcile"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// HTTPServer serves the desk's read models and intent endpoints.
//
//	GET    /v1/proposals/{proposal}/owners/{owner}/summary
//	GET    /v1/proposals/{proposal}/owners/{owner}/executions
//	POST   /v1/proposals/{proposal}/owners/{owner}/intents/{intent}
//	PUT    /v1/proposals/{proposal}/owners/{owner}/edits/{account}
//	DELETE /v1/proposals/{proposal}/owners/{owner}/edits/{account}
//	GET    /healthz, /readyz
//
// Intents accept ?dry_run=1 to preview the plan without executing.
type HTTPServer struct {
	httpServer *http.Server
	addr       string
	desk       *reconcile.Desk
	query      *query.QueryService
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func NewHTTPServer(
	addr string,
	desk *reconcile.Desk,
	qs *query.QueryService,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		addr:    addr,
		desk:    desk,
		query:   qs,
		health:  health,
		metrics: metrics,
		log:     log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", health.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", health.ReadinessHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/v1/proposals/{proposal}/owners/{owner}").Subrouter()
	api.HandleFunc("/summary", s.instrument("summary", s.handleSummary)).Methods(http.MethodGet)
	api.HandleFunc("/executions", s.instrument("executions", s.handleExecutions)).Methods(http.MethodGet)
	api.HandleFunc("/intents/{intent}", s.instrument("intent", s.handleIntent)).Methods(http.MethodPost)
	api.HandleFunc("/edits/{account}", s.instrument("edit_stage", s.handleStageEdit)).Methods(http.MethodPut)
	api.HandleFunc("/edits/{account}", s.instrument("edit_clear", s.handleClearEdit)).Methods(http.MethodDelete)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until the context is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// --- handlers ---

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
			s.metrics.QueryDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	summary, err := s.query.CachedSummary(r.Context(), domain.Owner(vars["owner"]), vars["proposal"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleExecutions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := s.query.ExecutionHistory(r.Context(), domain.Owner(vars["owner"]), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"executions": history})
}

type intentBodyJSON struct {
	Account  string `json:"account,omitempty"`
	ClientID uint64 `json:"client_id,omitempty"`
	Size     *int64 `json:"size,omitempty"`
	Price    *int64 `json:"price,omitempty"`
}

func (s *HTTPServer) handleIntent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body intentBodyJSON
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
	}

	req := reconcile.IntentRequest{
		Intent:   vars["intent"],
		Owner:    domain.Owner(vars["owner"]),
		Proposal: vars["proposal"],
		Scope:    r.URL.Query().Get("scope"),
		Account:  domain.AccountKey(body.Account),
		ClientID: body.ClientID,
		Size:     body.Size,
		Price:    body.Price,
	}

	if r.URL.Query().Get("dry_run") == "1" {
		pl, err := s.desk.PlanIntent(req)
		if err != nil {
			writeError(w, intentErrorCode(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"plan_id":  pl.ID.String(),
			"intent":   pl.Intent,
			"requests": pl.Requests,
		})
		return
	}

	result, err := s.desk.ExecuteIntent(r.Context(), req)
	if err != nil {
		writeJSON(w, intentErrorCode(err), map[string]interface{}{
			"plan_id":   result.PlanID.String(),
			"state":     result.State.String(),
			"confirmed": len(result.Confirmed),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan_id":    result.PlanID.String(),
		"state":      result.State.String(),
		"confirmed":  len(result.Confirmed),
		"signatures": result.Signatures,
	})
}

func (s *HTTPServer) handleStageEdit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := domain.AccountKey(vars["account"])

	var body intentBodyJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	sessions := s.desk.Sessions()
	sessions.Begin(key)
	if body.Size != nil {
		sessions.SetSize(key, *body.Size)
	}
	if body.Price != nil {
		sessions.SetPrice(key, *body.Price)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "staged"})
}

func (s *HTTPServer) handleClearEdit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.desk.Sessions().Clear(domain.AccountKey(vars["account"]))
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func intentErrorCode(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrUnknownIntent),
		errors.Is(err, reconcile.ErrUnknownProposal),
		errors.Is(err, reconcile.ErrUnknownAccount),
		errors.Is(err, reconcile.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
