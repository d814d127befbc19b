package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const transactionSelect = `SELECT t.id, t.type, t.comment, t.value, t.date, t.account_id, t.category_id, t.created_at,
       COALESCE(GROUP_CONCAT(tt.tag_id, ',' ORDER BY g.name), '')
FROM transactions t
LEFT JOIN transaction_tags tt ON tt.transaction_id = t.id
LEFT JOIN tags g ON g.id = tt.tag_id`

func scanTransaction(row scanner) (core.Transaction, error) {
	var t core.Transaction
	var date, created, tags string
	if err := row.Scan(&t.ID, &t.Type, &t.Comment, &t.Value, &date, &t.AccountID, &t.CategoryID, &created, &tags); err != nil {
		return t, err
	}
	var err error
	if t.Date, err = parseTime(date); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if tags != "" {
		for _, s := range strings.Split(tags, ",") {
			id, err := uuid.Parse(s)
			if err != nil {
				return t, err
			}
			t.TagIDs = append(t.TagIDs, id)
		}
	}
	return t, nil
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (id, type, comment, value, date, account_id, category_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		t.ID, t.Type, t.Comment, t.Value, formatTime(t.Date), t.AccountID, t.CategoryID, formatTime(t.CreatedAt))
	return err
}

const getTransaction = `-- name: GetTransaction :one
` + transactionSelect + `
WHERE t.id = ?
GROUP BY t.id`

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactions = `-- name: ListTransactions :many
` + transactionSelect + `
WHERE (? = '' OR t.date >= ?)
  AND (? = '' OR t.date < ?)
  AND (? = '' OR t.account_id = ?)
GROUP BY t.id
ORDER BY t.date DESC, t.created_at DESC`

func (q *Queries) ListTransactions(ctx context.Context, f core.TransactionQuery) ([]core.Transaction, error) {
	from, to, account := formatBound(f.From), formatBound(f.To), ""
	if f.AccountID != uuid.Nil {
		account = f.AccountID.String()
	}
	rows, err := q.db.QueryContext(ctx, listTransactions, from, from, to, to, account, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions
SET type = ?, comment = ?, value = ?, date = ?, account_id = ?, category_id = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		t.Type, t.Comment, t.Value, formatTime(t.Date), t.AccountID, t.CategoryID, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const clearTransactionTags = `-- name: ClearTransactionTags :exec
DELETE FROM transaction_tags WHERE transaction_id = ?`

const addTransactionTag = `-- name: AddTransactionTag :exec
INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`

// SetTransactionTags replaces the tag links of a transaction.
func (q *Queries) SetTransactionTags(ctx context.Context, id uuid.UUID, tags []uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, clearTransactionTags, id); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := q.db.ExecContext(ctx, addTransactionTag, id, tag); err != nil {
			return err
		}
	}
	return nil
}
