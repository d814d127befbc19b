package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Deps holds what the server needs. Metrics and Logger may be nil.
type Deps struct {
	Ledger         *services.LedgerService
	Stats          *services.StatsService
	Metrics        *metrics.Collector
	Logger         *applog.Logger
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	stats    *services.StatsService
	metrics  *metrics.Collector
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer builds the API server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}

	s := &Server{
		ledger:   deps.Ledger,
		stats:    deps.Stats,
		metrics:  deps.Metrics,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.observe)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := mux.NewRouter()
	r.Use(
		tracer.Middleware,
		applog.Middleware(logger, trace.RequestID),
		headers.Middleware,
		s.detector.Middleware(func(*http.Request) { s.metrics.RecordSecurityEvent("suspicious") }),
	)
	notFound := tracer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("no such route").Write(w)
	}))
	methodNotAllowed := tracer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	}))
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = methodNotAllowed

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// Subrouters answer mismatches themselves.
	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = methodNotAllowed
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RecordSecurityEvent("rate_limited")
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, s.detector.ExtractClientIP(r))
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}))

	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}", s.handleUpdateAccount).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id}", s.handleDeleteAccount).Methods(http.MethodDelete)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/order", s.handleReorderCategories).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id}", s.handleGetCategory).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id}", s.handleUpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id}", s.handleDeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/tags", s.handleListTags).Methods(http.MethodGet)
	api.HandleFunc("/tags", s.handleCreateTag).Methods(http.MethodPost)
	api.HandleFunc("/tags/{id}", s.handleGetTag).Methods(http.MethodGet)
	api.HandleFunc("/tags/{id}", s.handleUpdateTag).Methods(http.MethodPut)
	api.HandleFunc("/tags/{id}", s.handleDeleteTag).Methods(http.MethodDelete)

	api.HandleFunc("/transactions", s.handleSearchTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/transfers", s.handleListTransfers).Methods(http.MethodGet)
	api.HandleFunc("/transfers", s.handleCreateTransfer).Methods(http.MethodPost)
	api.HandleFunc("/transfers/{id}", s.handleGetTransfer).Methods(http.MethodGet)
	api.HandleFunc("/transfers/{id}", s.handleDeleteTransfer).Methods(http.MethodDelete)

	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id}", s.handleGetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id}", s.handleUpdateBudget).Methods(http.MethodPut)
	api.HandleFunc("/budgets/{id}", s.handleDeleteBudget).Methods(http.MethodDelete)
	api.HandleFunc("/budgets/{id}/status", s.handleBudgetStatus).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id}/history", s.handleBudgetHistory).Methods(http.MethodGet)

	api.HandleFunc("/stats/summary", s.handleStatsSummary).Methods(http.MethodGet)
	api.HandleFunc("/stats/categories", s.handleStatsCategories).Methods(http.MethodGet)
	api.HandleFunc("/stats/timeline", s.handleStatsTimeline).Methods(http.MethodGet)
	api.HandleFunc("/stats/tags", s.handleStatsTags).Methods(http.MethodGet)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPatch, http.MethodPut)

	api.HandleFunc("/export/json", s.handleExportJSON).Methods(http.MethodGet)
	api.HandleFunc("/export/csv", s.handleExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/import/json", s.handleImportJSON).Methods(http.MethodPost)
	api.HandleFunc("/maintenance/recalculate", s.handleRecalculate).Methods(http.MethodPost)

	return r
}

// observe feeds the request histogram, labelled by route template so ids
// do not explode cardinality.
func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	s.metrics.ObserveHTTP(r.Method, route, status, d)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.ledger.Settings(ctx); err != nil {
		applog.LogError(ctx, "Readiness check failed", err, applog.ComponentHTTP, "ready", nil)
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
