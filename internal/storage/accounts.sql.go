package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const accountColumns = `id, name, currency, starting_balance, balance, icon, color, created_at`

func scanAccount(row scanner) (core.BalanceAccount, error) {
	var a core.BalanceAccount
	var created string
	if err := row.Scan(&a.ID, &a.Name, &a.Currency, &a.StartingBalance, &a.Balance, &a.Icon, &a.Color, &created); err != nil {
		return a, err
	}
	var err error
	a.CreatedAt, err = parseTime(created)
	return a, err
}

const createAccount = `-- name: CreateAccount :exec
INSERT INTO accounts (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a core.BalanceAccount) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		a.ID, a.Name, a.Currency, a.StartingBalance, a.Balance, a.Icon, a.Color, formatTime(a.CreatedAt))
	return err
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (core.BalanceAccount, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const listAccounts = `-- name: ListAccounts :many
SELECT ` + accountColumns + ` FROM accounts ORDER BY name, id`

func (q *Queries) ListAccounts(ctx context.Context) ([]core.BalanceAccount, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.BalanceAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const updateAccount = `-- name: UpdateAccount :execrows
UPDATE accounts
SET name = ?, currency = ?, starting_balance = ?, icon = ?, color = ?
WHERE id = ?`

func (q *Queries) UpdateAccount(ctx context.Context, a core.BalanceAccount) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAccount, a.Name, a.Currency, a.StartingBalance, a.Icon, a.Color, a.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setAccountBalance = `-- name: SetAccountBalance :exec
UPDATE accounts SET balance = ? WHERE id = ?`

func (q *Queries) SetAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx, setAccountBalance, core.RoundMoney(balance), id)
	return err
}

const getAccountBalance = `-- name: GetAccountBalance :one
SELECT balance FROM accounts WHERE id = ?`

func (q *Queries) GetAccountBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := q.db.QueryRowContext(ctx, getAccountBalance, id).Scan(&b)
	return b, err
}

const deleteAccount = `-- name: DeleteAccount :execrows
DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const reassignAccountTransactions = `-- name: ReassignAccountTransactions :exec
UPDATE transactions SET account_id = ? WHERE account_id = ?`

const deleteTransfersBetween = `-- name: DeleteTransfersBetween :exec
DELETE FROM transfers
WHERE (from_account_id = ? AND to_account_id = ?) OR (from_account_id = ? AND to_account_id = ?)`

const reassignTransfersFrom = `-- name: ReassignTransfersFrom :exec
UPDATE transfers SET from_account_id = ? WHERE from_account_id = ?`

const reassignTransfersTo = `-- name: ReassignTransfersTo :exec
UPDATE transfers SET to_account_id = ? WHERE to_account_id = ?`

const reassignAccountBudgets = `-- name: ReassignAccountBudgets :exec
UPDATE budgets SET account_id = ? WHERE account_id = ?`

// ReassignAccount moves every dependent of from onto to. Transfers between
// the two accounts would become self transfers and are removed.
func (q *Queries) ReassignAccount(ctx context.Context, from, to uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteTransfersBetween, from, to, to, from); err != nil {
		return err
	}
	for _, stmt := range []string{reassignAccountTransactions, reassignTransfersFrom, reassignTransfersTo, reassignAccountBudgets} {
		if _, err := q.db.ExecContext(ctx, stmt, to, from); err != nil {
			return err
		}
	}
	return nil
}

const deleteAccountTransactions = `-- name: DeleteAccountTransactions :exec
DELETE FROM transactions WHERE account_id = ?`

const deleteAccountTransfers = `-- name: DeleteAccountTransfers :exec
DELETE FROM transfers WHERE from_account_id = ? OR to_account_id = ?`

const deleteAccountBudgets = `-- name: DeleteAccountBudgets :exec
DELETE FROM budgets WHERE account_id = ?`

// CascadeAccount deletes every dependent of the account.
func (q *Queries) CascadeAccount(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteAccountTransactions, id); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, deleteAccountTransfers, id, id); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, deleteAccountBudgets, id)
	return err
}
