package http

import (
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const defaultHistoryPeriods = 6

type budgetRequest struct {
	Name       string `json:"name"`
	Limit      string `json:"limit"`
	Period     string `json:"period"`
	CategoryID string `json:"category_id"`
	AccountID  string `json:"account_id"`
}

func (req budgetRequest) toBudget() (core.Budget, error) {
	var (
		b   core.Budget
		err error
	)
	b.Name = sanitizeInput(req.Name)
	if b.Limit, err = core.ParseAmount(req.Limit); err != nil {
		return b, err
	}
	if b.Period, err = core.ParsePeriod(req.Period); err != nil {
		return b, err
	}
	if b.CategoryID, err = parseOptionalID("category_id", req.CategoryID); err != nil {
		return b, err
	}
	if b.AccountID, err = parseOptionalID("account_id", req.AccountID); err != nil {
		return b, err
	}
	return b, nil
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.ListBudgets(r.Context())
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	b, err := req.toBudget()
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateBudget(r.Context(), b)
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	b, err := s.ledger.GetBudget(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	b, err := req.toBudget()
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	b.ID = id
	updated, err := s.ledger.UpdateBudget(r.Context(), b)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteBudget(r.Context(), id); err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	rollup, err := s.ledger.BudgetStatus(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

// handleBudgetHistory returns the last ?periods= periods, newest first.
func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	n := defaultHistoryPeriods
	if v := strings.TrimSpace(r.URL.Query().Get("periods")); v != "" {
		if n, err = strconv.Atoi(v); err != nil {
			writeError(r.Context(), w, applog.OpRead, badRequest("periods must be a number, got %q", v))
			return
		}
	}
	history, err := s.ledger.BudgetHistory(r.Context(), id, n)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	if history == nil {
		history = []budget.Rollup{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.ledger.Settings(r.Context())
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs.Encode())
}

// handleUpdateSettings takes a flat object of preference keys to string
// values. Every pair is validated before any is stored.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	for k, v := range values {
		values[k] = sanitizeInput(v)
	}
	prefs, err := s.ledger.UpdateSettings(r.Context(), values)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs.Encode())
}
