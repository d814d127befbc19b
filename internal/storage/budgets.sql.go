package storage

import (
	"context"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const budgetColumns = `id, name, limit_amount, period, category_id, account_id, created_at`

func nullable(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func scanBudget(row scanner) (core.Budget, error) {
	var b core.Budget
	var category, account uuid.NullUUID
	var created string
	if err := row.Scan(&b.ID, &b.Name, &b.Limit, &b.Period, &category, &account, &created); err != nil {
		return b, err
	}
	if category.Valid {
		b.CategoryID = &category.UUID
	}
	if account.Valid {
		b.AccountID = &account.UUID
	}
	var err error
	b.CreatedAt, err = parseTime(created)
	return b, err
}

const createBudget = `-- name: CreateBudget :exec
INSERT INTO budgets (` + budgetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx, createBudget,
		b.ID, b.Name, b.Limit, b.Period, nullable(b.CategoryID), nullable(b.AccountID), formatTime(b.CreatedAt))
	return err
}

const getBudget = `-- name: GetBudget :one
SELECT ` + budgetColumns + ` FROM budgets WHERE id = ?`

func (q *Queries) GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, getBudget, id))
}

const listBudgets = `-- name: ListBudgets :many
SELECT ` + budgetColumns + ` FROM budgets ORDER BY name`

func (q *Queries) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const updateBudget = `-- name: UpdateBudget :execrows
UPDATE budgets SET name = ?, limit_amount = ?, period = ?, category_id = ?, account_id = ? WHERE id = ?`

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateBudget,
		b.Name, b.Limit, b.Period, nullable(b.CategoryID), nullable(b.AccountID), b.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteBudget = `-- name: DeleteBudget :execrows
DELETE FROM budgets WHERE id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBudget, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countRows = `-- name: CountRows :one
SELECT (SELECT COUNT(*) FROM accounts) + (SELECT COUNT(*) FROM tags)
     + (SELECT COUNT(*) FROM transactions) + (SELECT COUNT(*) FROM transfers) + (SELECT COUNT(*) FROM budgets)`

// CountRows returns the number of user-created ledger rows. Categories
// and settings are excluded since they are seeded on startup.
func (q *Queries) CountRows(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRows).Scan(&n)
	return n, err
}
