package storage

import (
	"context"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const transferColumns = `id, from_account_id, to_account_id, value, rate, comment, date, created_at`

func scanTransfer(row scanner) (core.Transfer, error) {
	var t core.Transfer
	var date, created string
	if err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Value, &t.Rate, &t.Comment, &date, &created); err != nil {
		return t, err
	}
	var err error
	if t.Date, err = parseTime(date); err != nil {
		return t, err
	}
	t.CreatedAt, err = parseTime(created)
	return t, err
}

const createTransfer = `-- name: CreateTransfer :exec
INSERT INTO transfers (` + transferColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransfer(ctx context.Context, t core.Transfer) error {
	_, err := q.db.ExecContext(ctx, createTransfer,
		t.ID, t.FromAccountID, t.ToAccountID, t.Value, t.Rate, t.Comment, formatTime(t.Date), formatTime(t.CreatedAt))
	return err
}

const getTransfer = `-- name: GetTransfer :one
SELECT ` + transferColumns + ` FROM transfers WHERE id = ?`

func (q *Queries) GetTransfer(ctx context.Context, id uuid.UUID) (core.Transfer, error) {
	return scanTransfer(q.db.QueryRowContext(ctx, getTransfer, id))
}

const listTransfers = `-- name: ListTransfers :many
SELECT ` + transferColumns + ` FROM transfers
WHERE (? = '' OR date >= ?)
  AND (? = '' OR date < ?)
  AND (? = '' OR from_account_id = ? OR to_account_id = ?)
ORDER BY date DESC, created_at DESC`

func (q *Queries) ListTransfers(ctx context.Context, f core.TransactionQuery) ([]core.Transfer, error) {
	from, to, account := formatBound(f.From), formatBound(f.To), ""
	if f.AccountID != uuid.Nil {
		account = f.AccountID.String()
	}
	rows, err := q.db.QueryContext(ctx, listTransfers, from, from, to, to, account, account, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const deleteTransfer = `-- name: DeleteTransfer :execrows
DELETE FROM transfers WHERE id = ?`

func (q *Queries) DeleteTransfer(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransfer, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
