package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/settings"
)

func (s *LedgerService) prepareBudget(ctx context.Context, b *core.Budget) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Limit = core.RoundMoney(b.Limit)
	if err := b.Validate(); err != nil {
		return err
	}
	if b.CategoryID != nil {
		c, err := s.store.GetCategory(ctx, *b.CategoryID)
		if err != nil {
			return fmt.Errorf("category: %w", err)
		}
		if c.Type != core.Spending {
			return fmt.Errorf("%w: budgets track spending categories only", core.ErrTypeMismatch)
		}
	}
	if b.AccountID != nil {
		if _, err := s.store.GetAccount(ctx, *b.AccountID); err != nil {
			return fmt.Errorf("account: %w", err)
		}
	}
	return nil
}

func (s *LedgerService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = core.NewID()
	b.CreatedAt = s.now().UTC()
	if err := s.prepareBudget(ctx, &b); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.committed(ctx, amqp.KindCreated, EntityBudget, b.ID)
	return b, nil
}

func (s *LedgerService) GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

func (s *LedgerService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx)
}

func (s *LedgerService) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	old, err := s.store.GetBudget(ctx, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = old.CreatedAt
	if err := s.prepareBudget(ctx, &b); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityBudget, b.ID)
	return b, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.committed(ctx, amqp.KindDeleted, EntityBudget, id)
	return nil
}

func (s *LedgerService) weekStart(ctx context.Context) (time.Weekday, error) {
	prefs, err := settings.Load(ctx, s.store)
	if err != nil {
		return time.Monday, err
	}
	return prefs.WeekStart, nil
}

// BudgetStatus rolls up the current period of a budget.
func (s *LedgerService) BudgetStatus(ctx context.Context, id uuid.UUID) (budget.Rollup, error) {
	history, err := s.BudgetHistory(ctx, id, 1)
	if err != nil {
		return budget.Rollup{}, err
	}
	return history[0], nil
}

// BudgetHistory returns the last n period rollups of a budget, newest first.
func (s *LedgerService) BudgetHistory(ctx context.Context, id uuid.UUID, n int) ([]budget.Rollup, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	weekStart, err := s.weekStart(ctx)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > budget.MaxHistory {
		return nil, fmt.Errorf("%w: history length must be between 1 and %d", core.ErrInvalidInput, budget.MaxHistory)
	}
	now := s.now().In(s.loc)
	from, to := budget.HistoryRange(b, now, weekStart, n)
	q := core.TransactionQuery{From: from, To: to}
	if b.AccountID != nil {
		q.AccountID = *b.AccountID
	}
	txs, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return budget.History(b, now, weekStart, n, txs)
}

// Settings

func (s *LedgerService) Settings(ctx context.Context) (settings.Preferences, error) {
	return settings.Load(ctx, s.store)
}

// UpdateSettings validates every pair before storing any of them.
func (s *LedgerService) UpdateSettings(ctx context.Context, values map[string]string) (settings.Preferences, error) {
	for k, v := range values {
		if _, err := settings.Validate(k, v); err != nil {
			return settings.Preferences{}, fmt.Errorf("%s: %w", k, err)
		}
	}
	for k, v := range values {
		if err := settings.Set(ctx, s.store, k, v); err != nil {
			return settings.Preferences{}, err
		}
	}
	s.committed(ctx, amqp.KindUpdated, EntitySettings, uuid.Nil)
	return settings.Load(ctx, s.store)
}

// Maintenance

func (s *LedgerService) RecalculateBalances(ctx context.Context) error {
	if err := s.store.RecalculateBalances(ctx); err != nil {
		return fmt.Errorf("recalculate balances: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityLedger, uuid.Nil)
	return nil
}

func (s *LedgerService) ExportJSON(ctx context.Context, w io.Writer) error {
	snap, err := export.Snapshot(ctx, s.store, s.now())
	if err != nil {
		return err
	}
	return export.WriteJSON(w, snap)
}

// ExportCSV writes the transactions dated in [from, to).
func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer, from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("%w: from must be before to", core.ErrInvalidDate)
	}
	return export.TransactionsCSV(ctx, s.store, w, from, to, s.loc)
}

// ImportJSON restores a snapshot into an empty store.
func (s *LedgerService) ImportJSON(ctx context.Context, r io.Reader) (core.Snapshot, error) {
	snap, err := export.ReadJSON(r)
	if err != nil {
		return core.Snapshot{}, err
	}
	if err := export.Import(ctx, s.store, snap); err != nil {
		return core.Snapshot{}, err
	}
	s.committed(ctx, amqp.KindCreated, EntityLedger, uuid.Nil)
	return snap, nil
}
