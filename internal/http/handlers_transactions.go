package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/filter"
	applog "fintrack/internal/log"
)

type transactionRequest struct {
	Type       string   `json:"type"`
	Value      string   `json:"value"`
	Date       string   `json:"date"`
	AccountID  string   `json:"account_id"`
	CategoryID string   `json:"category_id"`
	TagIDs     []string `json:"tag_ids"`
	Comment    string   `json:"comment"`
}

func (req transactionRequest) toTransaction(loc *time.Location) (core.Transaction, error) {
	var (
		t   core.Transaction
		err error
	)
	if t.Type, err = core.ParseCategoryType(req.Type); err != nil {
		return t, err
	}
	if t.Value, err = core.ParseAmount(req.Value); err != nil {
		return t, err
	}
	if t.Date, err = parseDate(req.Date, loc); err != nil {
		return t, err
	}
	if t.AccountID, err = parseRequiredID("account_id", req.AccountID); err != nil {
		return t, err
	}
	if t.CategoryID, err = parseRequiredID("category_id", req.CategoryID); err != nil {
		return t, err
	}
	if t.TagIDs, err = parseIDList("tag_ids", req.TagIDs); err != nil {
		return t, err
	}
	t.Comment = sanitizeInput(req.Comment)
	return t, nil
}

// handleSearchTransactions lists transactions through the filter pipeline.
// See filter.ParseQuery for the accepted parameters.
func (s *Server) handleSearchTransactions(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseQuery(r.URL.Query(), s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	txs, err := s.ledger.SearchTransactions(r.Context(), criteria)
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	t, err := req.toTransaction(s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	t, err := req.toTransaction(s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	t.ID = id
	updated, err := s.ledger.UpdateTransaction(r.Context(), t)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transfers

type transferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Value         string `json:"value"`
	Rate          string `json:"rate"`
	Date          string `json:"date"`
	Comment       string `json:"comment"`
}

func (req transferRequest) toTransfer(loc *time.Location) (core.Transfer, error) {
	var (
		t   core.Transfer
		err error
	)
	if t.FromAccountID, err = parseRequiredID("from_account_id", req.FromAccountID); err != nil {
		return t, err
	}
	if t.ToAccountID, err = parseRequiredID("to_account_id", req.ToAccountID); err != nil {
		return t, err
	}
	if t.Value, err = core.ParseAmount(req.Value); err != nil {
		return t, err
	}
	if t.Rate, err = parseOptionalRate(req.Rate); err != nil {
		return t, err
	}
	if t.Date, err = parseDate(req.Date, loc); err != nil {
		return t, err
	}
	t.Comment = sanitizeInput(req.Comment)
	return t, nil
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := parseRange(q, s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	account, err := parseRequiredID("account", q.Get("account"))
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	transfers, err := s.ledger.ListTransfers(r.Context(), core.TransactionQuery{From: from, To: to, AccountID: account})
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	if transfers == nil {
		transfers = []core.Transfer{}
	}
	writeJSON(w, http.StatusOK, transfers)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	t, err := req.toTransfer(s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateTransfer(r.Context(), t)
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	t, err := s.ledger.GetTransfer(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteTransfer(r.Context(), id); err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
