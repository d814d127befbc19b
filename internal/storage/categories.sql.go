package storage

import (
	"context"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const categoryColumns = `id, type, name, icon, color, display_order`

func scanCategory(row scanner) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.Type, &c.Name, &c.Icon, &c.Color, &c.Order)
	return c, err
}

const createCategory = `-- name: CreateCategory :exec
INSERT INTO categories (` + categoryColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, createCategory, c.ID, c.Type, c.Name, c.Icon, c.Color, c.Order)
	return err
}

const getCategory = `-- name: GetCategory :one
SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, id))
}

const listCategories = `-- name: ListCategories :many
SELECT ` + categoryColumns + ` FROM categories
WHERE ? = '' OR type = ?
ORDER BY display_order, name`

func (q *Queries) ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, string(typ), string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateCategory = `-- name: UpdateCategory :execrows
UPDATE categories SET type = ?, name = ?, icon = ?, color = ?, display_order = ? WHERE id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, c.Type, c.Name, c.Icon, c.Color, c.Order, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setCategoryOrder = `-- name: SetCategoryOrder :execrows
UPDATE categories SET display_order = ? WHERE id = ?`

func (q *Queries) SetCategoryOrder(ctx context.Context, id uuid.UUID, order int) (int64, error) {
	res, err := q.db.ExecContext(ctx, setCategoryOrder, order, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `-- name: DeleteCategory :execrows
DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAllCategories = `-- name: DeleteAllCategories :exec
DELETE FROM categories`

func (q *Queries) DeleteAllCategories(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllCategories)
	return err
}

const reassignCategoryTransactions = `-- name: ReassignCategoryTransactions :exec
UPDATE transactions SET category_id = ? WHERE category_id = ?`

const reassignCategoryBudgets = `-- name: ReassignCategoryBudgets :exec
UPDATE budgets SET category_id = ? WHERE category_id = ?`

func (q *Queries) ReassignCategory(ctx context.Context, from, to uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, reassignCategoryTransactions, to, from); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, reassignCategoryBudgets, to, from)
	return err
}

const deleteCategoryTransactions = `-- name: DeleteCategoryTransactions :exec
DELETE FROM transactions WHERE category_id = ?`

const deleteCategoryBudgets = `-- name: DeleteCategoryBudgets :exec
DELETE FROM budgets WHERE category_id = ?`

func (q *Queries) CascadeCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteCategoryTransactions, id); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, deleteCategoryBudgets, id)
	return err
}
