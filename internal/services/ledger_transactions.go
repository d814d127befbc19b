package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/filter"
)

// prepareTransaction normalizes t and checks that its account, category
// and tags exist and that the category type matches.
func (s *LedgerService) prepareTransaction(ctx context.Context, t *core.Transaction) error {
	t.Comment = strings.TrimSpace(t.Comment)
	t.Value = core.RoundMoney(t.Value)
	t.TagIDs = dedupe(t.TagIDs)
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := s.store.GetAccount(ctx, t.AccountID); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	cat, err := s.store.GetCategory(ctx, t.CategoryID)
	if err != nil {
		return fmt.Errorf("category: %w", err)
	}
	if cat.Type != t.Type {
		return fmt.Errorf("%w: category %q is %s", core.ErrTypeMismatch, cat.Name, cat.Type)
	}
	names := make(map[uuid.UUID]string, len(t.TagIDs))
	for _, id := range t.TagIDs {
		tag, err := s.store.GetTag(ctx, id)
		if err != nil {
			return fmt.Errorf("tag: %w", err)
		}
		names[id] = strings.ToLower(tag.Name)
	}
	// Same order the stores read tags back in.
	sort.SliceStable(t.TagIDs, func(i, j int) bool { return names[t.TagIDs[i]] < names[t.TagIDs[j]] })
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = core.NewID()
	t.CreatedAt = s.now().UTC()
	if err := s.prepareTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.committed(ctx, amqp.KindCreated, EntityTransaction, t.ID)
	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID, "type", t.Type, "value", t.Value.String(), "account_id", t.AccountID)
	return t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = old.CreatedAt
	if err := s.prepareTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityTransaction, t.ID)
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.committed(ctx, amqp.KindDeleted, EntityTransaction, id)
	return nil
}

// SearchTransactions loads the transactions in the criteria's date range
// and runs them through the filter pipeline.
func (s *LedgerService) SearchTransactions(ctx context.Context, c filter.Criteria) ([]core.Transaction, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	q := core.TransactionQuery{From: c.From, To: c.To}
	if len(c.AccountIDs) == 1 {
		q.AccountID = c.AccountIDs[0]
	}

	var (
		txs        []core.Transaction
		categories []core.Category
		tags       []core.Tag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.store.ListCategories(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		tags, err = s.store.ListTags(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return c.Apply(txs, filter.NewLookup(categories, tags)), nil
}

// Transfers

// CreateTransfer moves value between two accounts. A zero rate defaults to
// 1 when both accounts share a currency; otherwise the rate is required.
func (s *LedgerService) CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	t.ID = core.NewID()
	t.CreatedAt = s.now().UTC()
	t.Comment = strings.TrimSpace(t.Comment)
	t.Value = core.RoundMoney(t.Value)

	if t.FromAccountID == uuid.Nil || t.ToAccountID == uuid.Nil {
		return core.Transfer{}, core.ErrMissingAccount
	}
	if t.FromAccountID == t.ToAccountID {
		return core.Transfer{}, core.ErrSameAccount
	}
	from, err := s.store.GetAccount(ctx, t.FromAccountID)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("from account: %w", err)
	}
	to, err := s.store.GetAccount(ctx, t.ToAccountID)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("to account: %w", err)
	}
	if t.Rate.IsZero() {
		if from.Currency != to.Currency {
			return core.Transfer{}, fmt.Errorf("%w: %s to %s", core.ErrRateRequired, from.Currency, to.Currency)
		}
		t.Rate = decimal.NewFromInt(1)
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}
	if err := s.store.CreateTransfer(ctx, t); err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}
	s.committed(ctx, amqp.KindCreated, EntityTransfer, t.ID)
	slog.InfoContext(ctx, "Transfer created",
		"id", t.ID, "from", t.FromAccountID, "to", t.ToAccountID, "value", t.Value.String(), "rate", t.Rate.String())
	return t, nil
}

func (s *LedgerService) GetTransfer(ctx context.Context, id uuid.UUID) (core.Transfer, error) {
	return s.store.GetTransfer(ctx, id)
}

func (s *LedgerService) ListTransfers(ctx context.Context, q core.TransactionQuery) ([]core.Transfer, error) {
	return s.store.ListTransfers(ctx, q)
}

func (s *LedgerService) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteTransfer(ctx, id); err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	s.committed(ctx, amqp.KindDeleted, EntityTransfer, id)
	return nil
}
