// Package memory is an in-process implementation of ports.Store used by the
// memory backend and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]core.BalanceAccount
	categories   map[uuid.UUID]core.Category
	tags         map[uuid.UUID]core.Tag
	transactions map[uuid.UUID]core.Transaction
	transfers    map[uuid.UUID]core.Transfer
	budgets      map[uuid.UUID]core.Budget
	settings     map[string]string
}

func New() *Store {
	return &Store{
		accounts:     map[uuid.UUID]core.BalanceAccount{},
		categories:   map[uuid.UUID]core.Category{},
		tags:         map[uuid.UUID]core.Tag{},
		transactions: map[uuid.UUID]core.Transaction{},
		transfers:    map[uuid.UUID]core.Transfer{},
		budgets:      map[uuid.UUID]core.Budget{},
		settings:     map[string]string{},
	}
}

func (s *Store) Close() error { return nil }

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// recalculate must be called with mu held.
func (s *Store) recalculate() {
	accounts := make([]core.BalanceAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	txs := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		txs = append(txs, t)
	}
	transfers := make([]core.Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		transfers = append(transfers, t)
	}
	for id, b := range core.ComputeBalances(accounts, txs, transfers) {
		a := s.accounts[id]
		a.Balance = b
		s.accounts[id] = a
	}
}

// Accounts

func (s *Store) CreateAccount(_ context.Context, a core.BalanceAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	s.accounts[a.ID] = a
	s.recalculate()
	return nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (core.BalanceAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.BalanceAccount{}, notFound("account", id)
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.BalanceAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BalanceAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.BalanceAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.accounts[a.ID]
	if !ok {
		return notFound("account", a.ID)
	}
	a.CreatedAt = old.CreatedAt
	s.accounts[a.ID] = a
	s.recalculate()
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, false); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return notFound("account", id)
	}
	switch policy.Mode {
	case core.Reassign:
		if _, ok := s.accounts[policy.Target]; !ok {
			return notFound("target account", policy.Target)
		}
		for tid, t := range s.transactions {
			if t.AccountID == id {
				t.AccountID = policy.Target
				s.transactions[tid] = t
			}
		}
		for tid, tr := range s.transfers {
			if tr.FromAccountID == id {
				tr.FromAccountID = policy.Target
			}
			if tr.ToAccountID == id {
				tr.ToAccountID = policy.Target
			}
			if tr.FromAccountID == tr.ToAccountID {
				delete(s.transfers, tid)
				continue
			}
			s.transfers[tid] = tr
		}
		for bid, b := range s.budgets {
			if b.AccountID != nil && *b.AccountID == id {
				target := policy.Target
				b.AccountID = &target
				s.budgets[bid] = b
			}
		}
	case core.Cascade:
		for tid, t := range s.transactions {
			if t.AccountID == id {
				delete(s.transactions, tid)
			}
		}
		for tid, tr := range s.transfers {
			if tr.FromAccountID == id || tr.ToAccountID == id {
				delete(s.transfers, tid)
			}
		}
		for bid, b := range s.budgets {
			if b.AccountID != nil && *b.AccountID == id {
				delete(s.budgets, bid)
			}
		}
	}
	delete(s.accounts, id)
	s.recalculate()
	return nil
}

// Categories

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return fmt.Errorf("category %s already exists", c.ID)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) GetCategory(_ context.Context, id uuid.UUID) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, notFound("category", id)
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, typ core.CategoryType) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if typ == "" || c.Type == typ {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return notFound("category", c.ID)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) ReorderCategories(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.categories[id]; !ok {
			return notFound("category", id)
		}
	}
	for i, id := range ids {
		c := s.categories[id]
		c.Order = i
		s.categories[id] = c
	}
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, false); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return notFound("category", id)
	}
	switch policy.Mode {
	case core.Reassign:
		target, ok := s.categories[policy.Target]
		if !ok {
			return notFound("target category", policy.Target)
		}
		if target.Type != c.Type {
			return core.ErrTypeMismatch
		}
		for tid, t := range s.transactions {
			if t.CategoryID == id {
				t.CategoryID = target.ID
				s.transactions[tid] = t
			}
		}
		for bid, b := range s.budgets {
			if b.CategoryID != nil && *b.CategoryID == id {
				tid := target.ID
				b.CategoryID = &tid
				s.budgets[bid] = b
			}
		}
	case core.Cascade:
		for tid, t := range s.transactions {
			if t.CategoryID == id {
				delete(s.transactions, tid)
			}
		}
		for bid, b := range s.budgets {
			if b.CategoryID != nil && *b.CategoryID == id {
				delete(s.budgets, bid)
			}
		}
	}
	delete(s.categories, id)
	s.recalculate()
	return nil
}

// Tags

func (s *Store) tagNameTaken(name string, except uuid.UUID) bool {
	for _, t := range s.tags {
		if t.ID != except && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateTag(_ context.Context, t core.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tagNameTaken(t.Name, t.ID) {
		return fmt.Errorf("%w: %q", core.ErrDuplicateTag, t.Name)
	}
	s.tags[t.ID] = t
	return nil
}

func (s *Store) GetTag(_ context.Context, id uuid.UUID) (core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return core.Tag{}, notFound("tag", id)
	}
	return t, nil
}

func (s *Store) ListTags(_ context.Context) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) UpdateTag(_ context.Context, t core.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[t.ID]; !ok {
		return notFound("tag", t.ID)
	}
	if s.tagNameTaken(t.Name, t.ID) {
		return fmt.Errorf("%w: %q", core.ErrDuplicateTag, t.Name)
	}
	s.tags[t.ID] = t
	return nil
}

func (s *Store) DeleteTag(_ context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, true); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id]; !ok {
		return notFound("tag", id)
	}
	if policy.Mode == core.Reassign {
		if _, ok := s.tags[policy.Target]; !ok {
			return notFound("target tag", policy.Target)
		}
	}
	for tid, t := range s.transactions {
		if !t.HasTag(id) {
			continue
		}
		switch policy.Mode {
		case core.Cascade:
			delete(s.transactions, tid)
			continue
		case core.Reassign:
			t.TagIDs = replaceTag(t.TagIDs, id, policy.Target)
		case core.Detach:
			t.TagIDs = replaceTag(t.TagIDs, id, uuid.Nil)
		}
		s.transactions[tid] = t
	}
	delete(s.tags, id)
	s.recalculate()
	return nil
}

// replaceTag swaps old for repl, dropping old when repl is uuid.Nil and
// never duplicating repl.
func replaceTag(ids []uuid.UUID, old, repl uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if id == old {
			id = repl
		}
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Transactions

func cloneTransaction(t core.Transaction) core.Transaction {
	t.TagIDs = append([]uuid.UUID(nil), t.TagIDs...)
	return t
}

// readTransaction copies t for a caller with its tags ordered by name.
func (s *Store) readTransaction(t core.Transaction) core.Transaction {
	t = cloneTransaction(t)
	sort.SliceStable(t.TagIDs, func(i, j int) bool {
		return strings.ToLower(s.tags[t.TagIDs[i]].Name) < strings.ToLower(s.tags[t.TagIDs[j]].Name)
	})
	return t
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	s.transactions[t.ID] = cloneTransaction(t)
	s.recalculate()
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, notFound("transaction", id)
	}
	return s.readTransaction(t), nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.transactions[t.ID]
	if !ok {
		return notFound("transaction", t.ID)
	}
	t.CreatedAt = old.CreatedAt
	s.transactions[t.ID] = cloneTransaction(t)
	s.recalculate()
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return notFound("transaction", id)
	}
	delete(s.transactions, id)
	s.recalculate()
	return nil
}

func (s *Store) ListTransactions(_ context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if q.AccountID != uuid.Nil && t.AccountID != q.AccountID {
			continue
		}
		if !q.Contains(t.Date) {
			continue
		}
		out = append(out, s.readTransaction(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Transfers

func (s *Store) CreateTransfer(_ context.Context, t core.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[t.ID]; ok {
		return fmt.Errorf("transfer %s already exists", t.ID)
	}
	s.transfers[t.ID] = t
	s.recalculate()
	return nil
}

func (s *Store) GetTransfer(_ context.Context, id uuid.UUID) (core.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return core.Transfer{}, notFound("transfer", id)
	}
	return t, nil
}

func (s *Store) ListTransfers(_ context.Context, q core.TransactionQuery) ([]core.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		if q.AccountID != uuid.Nil && t.FromAccountID != q.AccountID && t.ToAccountID != q.AccountID {
			continue
		}
		if !q.Contains(t.Date) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteTransfer(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[id]; !ok {
		return notFound("transfer", id)
	}
	delete(s.transfers, id)
	s.recalculate()
	return nil
}

// Budgets

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) GetBudget(_ context.Context, id uuid.UUID) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, notFound("budget", id)
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.budgets[b.ID]
	if !ok {
		return notFound("budget", b.ID)
	}
	b.CreatedAt = old.CreatedAt
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return notFound("budget", id)
	}
	delete(s.budgets, id)
	return nil
}

// Settings

func (s *Store) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) AllSettings(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

// Maintenance

func (s *Store) RecalculateBalances(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recalculate()
	return nil
}

func (s *Store) Import(_ context.Context, snap core.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.accounts)+len(s.tags)+len(s.transactions)+len(s.transfers)+len(s.budgets) > 0 {
		return core.ErrStoreNotEmpty
	}
	// Seeded categories are replaced.
	s.categories = map[uuid.UUID]core.Category{}
	for _, a := range snap.Accounts {
		s.accounts[a.ID] = a
	}
	for _, c := range snap.Categories {
		s.categories[c.ID] = c
	}
	for _, t := range snap.Tags {
		s.tags[t.ID] = t
	}
	for _, t := range snap.Transactions {
		s.transactions[t.ID] = cloneTransaction(t)
	}
	for _, t := range snap.Transfers {
		s.transfers[t.ID] = t
	}
	for _, b := range snap.Budgets {
		s.budgets[b.ID] = b
	}
	for k, v := range snap.Settings {
		s.settings[k] = v
	}
	s.recalculate()
	return nil
}
