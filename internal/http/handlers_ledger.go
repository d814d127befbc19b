package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type accountRequest struct {
	Name            string `json:"name"`
	Currency        string `json:"currency"`
	StartingBalance string `json:"starting_balance"`
	Icon            string `json:"icon"`
	Color           string `json:"color"`
}

func (req accountRequest) toAccount() (core.BalanceAccount, error) {
	start := decimal.Zero
	if strings.TrimSpace(req.StartingBalance) != "" {
		var err error
		if start, err = core.ParseSignedAmount(req.StartingBalance); err != nil {
			return core.BalanceAccount{}, err
		}
	}
	return core.BalanceAccount{
		Name:            sanitizeInput(req.Name),
		Currency:        sanitizeInput(req.Currency),
		StartingBalance: start,
		Icon:            sanitizeInput(req.Icon),
		Color:           sanitizeInput(req.Color),
	}, nil
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	a, err := req.toAccount()
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	a, err := s.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	a, err := req.toAccount()
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	a.ID = id
	updated, err := s.ledger.UpdateAccount(r.Context(), a)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	s.deleteWithPolicy(w, r, s.ledger.DeleteAccount)
}

// deleteWithPolicy serves DELETE for entities that take a deletion policy.
func (s *Server) deleteWithPolicy(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, id uuid.UUID, p core.DeletePolicy) error) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	policy, err := parseDeletePolicy(r.URL.Query())
	if err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	if err := del(r.Context(), id, policy); err != nil {
		writeError(r.Context(), w, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories

type categoryRequest struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Order *int   `json:"order"`
}

func (req categoryRequest) apply(c *core.Category) error {
	if t := strings.TrimSpace(req.Type); t != "" {
		typ, err := core.ParseCategoryType(t)
		if err != nil {
			return err
		}
		c.Type = typ
	}
	c.Name = sanitizeInput(req.Name)
	c.Icon = sanitizeInput(req.Icon)
	c.Color = sanitizeInput(req.Color)
	if req.Order != nil {
		c.Order = *req.Order
	}
	return nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var typ core.CategoryType
	if t := r.URL.Query().Get("type"); t != "" {
		var err error
		if typ, err = core.ParseCategoryType(t); err != nil {
			writeError(r.Context(), w, applog.OpList, err)
			return
		}
	}
	categories, err := s.ledger.ListCategories(r.Context(), typ)
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	var c core.Category
	if err := req.apply(&c); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	c, err := s.ledger.GetCategory(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleUpdateCategory keeps the stored type and order unless the body
// sets them.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	c, err := s.ledger.GetCategory(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	if err := req.apply(&c); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	updated, err := s.ledger.UpdateCategory(r.Context(), c)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	ids, err := parseIDList("ids", req.IDs)
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	if err := s.ledger.ReorderCategories(r.Context(), ids); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	categories, err := s.ledger.ListCategories(r.Context(), "")
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.deleteWithPolicy(w, r, s.ledger.DeleteCategory)
}

// Tags

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.ledger.ListTags(r.Context())
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateTag(r.Context(), core.Tag{
		Name:  sanitizeInput(req.Name),
		Color: sanitizeInput(req.Color),
	})
	if err != nil {
		writeError(r.Context(), w, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	t, err := s.ledger.GetTag(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	updated, err := s.ledger.UpdateTag(r.Context(), core.Tag{
		ID:    id,
		Name:  sanitizeInput(req.Name),
		Color: sanitizeInput(req.Color),
	})
	if err != nil {
		writeError(r.Context(), w, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	s.deleteWithPolicy(w, r, s.ledger.DeleteTag)
}
