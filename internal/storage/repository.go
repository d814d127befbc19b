package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Ledger schema ready", "version", version, "db_path", dbPath)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// mapErr translates missing rows into core.ErrNotFound.
func mapErr(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}

func mustAffect(n int64, err error, kind string, id uuid.UUID) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// adjustBalance adds delta to the stored balance of an account.
func adjustBalance(ctx context.Context, q *Queries, id uuid.UUID, delta decimal.Decimal) error {
	b, err := q.GetAccountBalance(ctx, id)
	if err != nil {
		return mapErr(err, "account", id)
	}
	return q.SetAccountBalance(ctx, id, b.Add(delta))
}

// recalculate rewrites every balance from the ledger invariant.
func recalculate(ctx context.Context, q *Queries) error {
	accounts, err := q.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	txs, err := q.ListTransactions(ctx, core.TransactionQuery{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	transfers, err := q.ListTransfers(ctx, core.TransactionQuery{})
	if err != nil {
		return fmt.Errorf("list transfers: %w", err)
	}
	balances := core.ComputeBalances(accounts, txs, transfers)
	for _, a := range accounts {
		if a.Balance.Equal(balances[a.ID]) {
			continue
		}
		if err := q.SetAccountBalance(ctx, a.ID, balances[a.ID]); err != nil {
			return fmt.Errorf("set balance %s: %w", a.ID, err)
		}
	}
	return nil
}

// Accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.BalanceAccount) error {
	a.Balance = a.StartingBalance
	if err := r.queries.CreateAccount(ctx, a); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite", "id", a.ID, "name", a.Name, "currency", a.Currency)
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id uuid.UUID) (core.BalanceAccount, error) {
	a, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return a, mapErr(err, "account", id)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.BalanceAccount, error) {
	items, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.BalanceAccount) error {
	return r.withTx(ctx, func(q *Queries) error {
		n, err := q.UpdateAccount(ctx, a)
		if err := mustAffect(n, err, "account", a.ID); err != nil {
			return err
		}
		return recalculate(ctx, q)
	})
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, false); err != nil {
		return err
	}
	return r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetAccount(ctx, id); err != nil {
			return mapErr(err, "account", id)
		}
		switch policy.Mode {
		case core.Reassign:
			if _, err := q.GetAccount(ctx, policy.Target); err != nil {
				return mapErr(err, "target account", policy.Target)
			}
			if err := q.ReassignAccount(ctx, id, policy.Target); err != nil {
				return fmt.Errorf("reassign account: %w", err)
			}
		case core.Cascade:
			if err := q.CascadeAccount(ctx, id); err != nil {
				return fmt.Errorf("cascade account: %w", err)
			}
		}
		n, err := q.DeleteAccount(ctx, id)
		if err := mustAffect(n, err, "account", id); err != nil {
			return err
		}
		return recalculate(ctx, q)
	})
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	if err := r.queries.CreateCategory(ctx, c); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return c, mapErr(err, "category", id)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error) {
	items, err := r.queries.ListCategories(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	n, err := r.queries.UpdateCategory(ctx, c)
	return mustAffect(n, err, "category", c.ID)
}

func (r *SQLiteRepository) ReorderCategories(ctx context.Context, ids []uuid.UUID) error {
	return r.withTx(ctx, func(q *Queries) error {
		for i, id := range ids {
			n, err := q.SetCategoryOrder(ctx, id, i)
			if err := mustAffect(n, err, "category", id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, false); err != nil {
		return err
	}
	return r.withTx(ctx, func(q *Queries) error {
		c, err := q.GetCategory(ctx, id)
		if err != nil {
			return mapErr(err, "category", id)
		}
		switch policy.Mode {
		case core.Reassign:
			target, err := q.GetCategory(ctx, policy.Target)
			if err != nil {
				return mapErr(err, "target category", policy.Target)
			}
			if target.Type != c.Type {
				return core.ErrTypeMismatch
			}
			if err := q.ReassignCategory(ctx, id, target.ID); err != nil {
				return fmt.Errorf("reassign category: %w", err)
			}
		case core.Cascade:
			if err := q.CascadeCategory(ctx, id); err != nil {
				return fmt.Errorf("cascade category: %w", err)
			}
		}
		n, err := q.DeleteCategory(ctx, id)
		if err := mustAffect(n, err, "category", id); err != nil {
			return err
		}
		return recalculate(ctx, q)
	})
}

// Tags

func (r *SQLiteRepository) CreateTag(ctx context.Context, t core.Tag) error {
	taken, err := r.queries.TagNameTaken(ctx, t.Name, t.ID)
	if err != nil {
		return fmt.Errorf("check tag name: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: %q", core.ErrDuplicateTag, t.Name)
	}
	if err := r.queries.CreateTag(ctx, t); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", core.ErrDuplicateTag, t.Name)
		}
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTag(ctx context.Context, id uuid.UUID) (core.Tag, error) {
	t, err := r.queries.GetTag(ctx, id)
	if err != nil {
		return t, mapErr(err, "tag", id)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTags(ctx context.Context) ([]core.Tag, error) {
	items, err := r.queries.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) UpdateTag(ctx context.Context, t core.Tag) error {
	taken, err := r.queries.TagNameTaken(ctx, t.Name, t.ID)
	if err != nil {
		return fmt.Errorf("check tag name: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: %q", core.ErrDuplicateTag, t.Name)
	}
	n, err := r.queries.UpdateTag(ctx, t)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", core.ErrDuplicateTag, t.Name)
	}
	return mustAffect(n, err, "tag", t.ID)
}

func (r *SQLiteRepository) DeleteTag(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, true); err != nil {
		return err
	}
	return r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetTag(ctx, id); err != nil {
			return mapErr(err, "tag", id)
		}
		switch policy.Mode {
		case core.Reassign:
			if _, err := q.GetTag(ctx, policy.Target); err != nil {
				return mapErr(err, "target tag", policy.Target)
			}
			if err := q.ReassignTag(ctx, id, policy.Target); err != nil {
				return fmt.Errorf("reassign tag: %w", err)
			}
		case core.Cascade:
			if err := q.DeleteTaggedTransactions(ctx, id); err != nil {
				return fmt.Errorf("cascade tag: %w", err)
			}
		}
		n, err := q.DeleteTag(ctx, id)
		if err := mustAffect(n, err, "tag", id); err != nil {
			return err
		}
		if policy.Mode == core.Cascade {
			return recalculate(ctx, q)
		}
		return nil
	})
}

// Transactions

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		if err := q.SetTransactionTags(ctx, t.ID, t.TagIDs); err != nil {
			return fmt.Errorf("set transaction tags: %w", err)
		}
		return adjustBalance(ctx, q, t.AccountID, t.SignedValue())
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"value", t.Value.String(),
		"account_id", t.AccountID)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	t, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return t, mapErr(err, "transaction", id)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	return r.withTx(ctx, func(q *Queries) error {
		old, err := q.GetTransaction(ctx, t.ID)
		if err != nil {
			return mapErr(err, "transaction", t.ID)
		}
		if _, err := q.UpdateTransaction(ctx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := q.SetTransactionTags(ctx, t.ID, t.TagIDs); err != nil {
			return fmt.Errorf("set transaction tags: %w", err)
		}
		if err := adjustBalance(ctx, q, old.AccountID, old.SignedValue().Neg()); err != nil {
			return err
		}
		return adjustBalance(ctx, q, t.AccountID, t.SignedValue())
	})
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	return r.withTx(ctx, func(q *Queries) error {
		old, err := q.GetTransaction(ctx, id)
		if err != nil {
			return mapErr(err, "transaction", id)
		}
		if err := q.SetTransactionTags(ctx, id, nil); err != nil {
			return fmt.Errorf("clear transaction tags: %w", err)
		}
		n, err := q.DeleteTransaction(ctx, id)
		if err := mustAffect(n, err, "transaction", id); err != nil {
			return err
		}
		return adjustBalance(ctx, q, old.AccountID, old.SignedValue().Neg())
	})
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.TransactionQuery) ([]core.Transaction, error) {
	items, err := r.queries.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}

// Transfers

func (r *SQLiteRepository) CreateTransfer(ctx context.Context, t core.Transfer) error {
	return r.withTx(ctx, func(q *Queries) error {
		if err := q.CreateTransfer(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		if err := adjustBalance(ctx, q, t.FromAccountID, t.Value.Neg()); err != nil {
			return err
		}
		return adjustBalance(ctx, q, t.ToAccountID, t.Credited())
	})
}

func (r *SQLiteRepository) GetTransfer(ctx context.Context, id uuid.UUID) (core.Transfer, error) {
	t, err := r.queries.GetTransfer(ctx, id)
	if err != nil {
		return t, mapErr(err, "transfer", id)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransfers(ctx context.Context, f core.TransactionQuery) ([]core.Transfer, error) {
	items, err := r.queries.ListTransfers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	return r.withTx(ctx, func(q *Queries) error {
		old, err := q.GetTransfer(ctx, id)
		if err != nil {
			return mapErr(err, "transfer", id)
		}
		n, err := q.DeleteTransfer(ctx, id)
		if err := mustAffect(n, err, "transfer", id); err != nil {
			return err
		}
		if err := adjustBalance(ctx, q, old.FromAccountID, old.Value); err != nil {
			return err
		}
		return adjustBalance(ctx, q, old.ToAccountID, old.Credited().Neg())
	})
}

// Budgets

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	if err := r.queries.CreateBudget(ctx, b); err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error) {
	b, err := r.queries.GetBudget(ctx, id)
	if err != nil {
		return b, mapErr(err, "budget", id)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	items, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	n, err := r.queries.UpdateBudget(ctx, b)
	return mustAffect(n, err, "budget", b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	n, err := r.queries.DeleteBudget(ctx, id)
	return mustAffect(n, err, "budget", id)
}

// Settings

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	v, err := r.queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	if err := r.queries.UpsertSetting(ctx, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) AllSettings(ctx context.Context) (map[string]string, error) {
	out, err := r.queries.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}

// Maintenance

func (r *SQLiteRepository) RecalculateBalances(ctx context.Context) error {
	if err := r.withTx(ctx, func(q *Queries) error { return recalculate(ctx, q) }); err != nil {
		return fmt.Errorf("recalculate balances: %w", err)
	}
	slog.InfoContext(ctx, "Balances recalculated")
	return nil
}

func (r *SQLiteRepository) Import(ctx context.Context, snap core.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	err := r.withTx(ctx, func(q *Queries) error {
		n, err := q.CountRows(ctx)
		if err != nil {
			return fmt.Errorf("count rows: %w", err)
		}
		if n > 0 {
			return core.ErrStoreNotEmpty
		}
		if err := q.DeleteAllCategories(ctx); err != nil {
			return fmt.Errorf("clear seeded categories: %w", err)
		}
		for _, a := range snap.Accounts {
			if err := q.CreateAccount(ctx, a); err != nil {
				return fmt.Errorf("import account %s: %w", a.ID, err)
			}
		}
		for _, c := range snap.Categories {
			if err := q.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("import category %s: %w", c.ID, err)
			}
		}
		for _, t := range snap.Tags {
			if err := q.CreateTag(ctx, t); err != nil {
				return fmt.Errorf("import tag %s: %w", t.ID, err)
			}
		}
		for _, t := range snap.Transactions {
			if err := q.CreateTransaction(ctx, t); err != nil {
				return fmt.Errorf("import transaction %s: %w", t.ID, err)
			}
			if err := q.SetTransactionTags(ctx, t.ID, t.TagIDs); err != nil {
				return fmt.Errorf("import transaction tags %s: %w", t.ID, err)
			}
		}
		for _, t := range snap.Transfers {
			if err := q.CreateTransfer(ctx, t); err != nil {
				return fmt.Errorf("import transfer %s: %w", t.ID, err)
			}
		}
		for _, b := range snap.Budgets {
			if err := q.CreateBudget(ctx, b); err != nil {
				return fmt.Errorf("import budget %s: %w", b.ID, err)
			}
		}
		for k, v := range snap.Settings {
			if err := q.UpsertSetting(ctx, k, v); err != nil {
				return fmt.Errorf("import setting %s: %w", k, err)
			}
		}
		return recalculate(ctx, q)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Snapshot imported",
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions),
		"transfers", len(snap.Transfers))
	return nil
}
