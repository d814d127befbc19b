// Package ports declares the storage and outbound interfaces the ledger
// services depend on. Implementations live in internal/storage (SQLite),
// internal/memory and internal/sheets.
package ports

import (
	"context"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Ports for the persistence layer. Every lookup of a missing id returns an
// error wrapping core.ErrNotFound.
type (
	AccountStore interface {
		CreateAccount(ctx context.Context, a core.BalanceAccount) error
		GetAccount(ctx context.Context, id uuid.UUID) (core.BalanceAccount, error)
		// ListAccounts returns accounts ordered by name.
		ListAccounts(ctx context.Context) ([]core.BalanceAccount, error)
		// UpdateAccount stores name, currency, icon, color and starting
		// balance, then recomputes the balance.
		UpdateAccount(ctx context.Context, a core.BalanceAccount) error
		DeleteAccount(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error)
		// ListCategories returns categories ordered by display order then
		// name. An empty type lists both kinds.
		ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		// ReorderCategories assigns display order by position in ids.
		ReorderCategories(ctx context.Context, ids []uuid.UUID) error
		DeleteCategory(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error
	}

	TagStore interface {
		CreateTag(ctx context.Context, t core.Tag) error
		GetTag(ctx context.Context, id uuid.UUID) (core.Tag, error)
		ListTags(ctx context.Context) ([]core.Tag, error)
		UpdateTag(ctx context.Context, t core.Tag) error
		DeleteTag(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id uuid.UUID) error
		// ListTransactions returns matches ordered by date desc.
		ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error)
	}

	TransferStore interface {
		CreateTransfer(ctx context.Context, t core.Transfer) error
		GetTransfer(ctx context.Context, id uuid.UUID) (core.Transfer, error)
		ListTransfers(ctx context.Context, q core.TransactionQuery) ([]core.Transfer, error)
		DeleteTransfer(ctx context.Context, id uuid.UUID) error
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) error
		GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error)
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, id uuid.UUID) error
	}

	SettingsStore interface {
		GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
		SetSetting(ctx context.Context, key, value string) error
		AllSettings(ctx context.Context) (map[string]string, error)
	}

	// Store is the complete persistence port.
	Store interface {
		AccountStore
		CategoryStore
		TagStore
		TransactionStore
		TransferStore
		BudgetStore
		SettingsStore

		// RecalculateBalances recomputes every balance from starting
		// balances, transactions and transfers.
		RecalculateBalances(ctx context.Context) error
		// Import restores a full graph into an empty store atomically.
		Import(ctx context.Context, snap core.Snapshot) error
		Close() error
	}
)

// EventPublisher receives a notification for every successful ledger write.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, kind, entity string, id uuid.UUID) error
}

// TransactionMirror is an external copy of the transaction list, such as a
// spreadsheet.
type TransactionMirror interface {
	UpsertTransaction(ctx context.Context, row MirrorRow) error
	RemoveTransaction(ctx context.Context, id uuid.UUID) error
	// ReplaceAll rewrites the mirror so it holds exactly rows.
	ReplaceAll(ctx context.Context, rows []MirrorRow) error
}

// MirrorRow is a transaction with its references resolved to names.
type MirrorRow struct {
	Transaction core.Transaction
	Account     string
	Currency    string
	Category    string
	Tags        []string
}
