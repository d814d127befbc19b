package storage

import (
	"context"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

func scanTag(row scanner) (core.Tag, error) {
	var t core.Tag
	err := row.Scan(&t.ID, &t.Name, &t.Color)
	return t, err
}

const createTag = `-- name: CreateTag :exec
INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`

func (q *Queries) CreateTag(ctx context.Context, t core.Tag) error {
	_, err := q.db.ExecContext(ctx, createTag, t.ID, t.Name, t.Color)
	return err
}

const getTag = `-- name: GetTag :one
SELECT id, name, color FROM tags WHERE id = ?`

func (q *Queries) GetTag(ctx context.Context, id uuid.UUID) (core.Tag, error) {
	return scanTag(q.db.QueryRowContext(ctx, getTag, id))
}

const listTags = `-- name: ListTags :many
SELECT id, name, color FROM tags ORDER BY name`

func (q *Queries) ListTags(ctx context.Context) ([]core.Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const tagNameTaken = `-- name: TagNameTaken :one
SELECT COUNT(*) FROM tags WHERE name = ? AND id <> ?`

// TagNameTaken relies on the NOCASE collation of tags.name.
func (q *Queries) TagNameTaken(ctx context.Context, name string, except uuid.UUID) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, tagNameTaken, name, except).Scan(&n)
	return n > 0, err
}

const updateTag = `-- name: UpdateTag :execrows
UPDATE tags SET name = ?, color = ? WHERE id = ?`

func (q *Queries) UpdateTag(ctx context.Context, t core.Tag) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTag, t.Name, t.Color, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTag = `-- name: DeleteTag :execrows
DELETE FROM tags WHERE id = ?`

func (q *Queries) DeleteTag(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTag, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const copyTagLinks = `-- name: CopyTagLinks :exec
INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id)
SELECT transaction_id, ? FROM transaction_tags WHERE tag_id = ?`

// ReassignTag links every transaction tagged with from to to as well. The
// old links go away with the tag row.
func (q *Queries) ReassignTag(ctx context.Context, from, to uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, copyTagLinks, to, from)
	return err
}

const deleteTaggedTransactions = `-- name: DeleteTaggedTransactions :exec
DELETE FROM transactions
WHERE id IN (SELECT transaction_id FROM transaction_tags WHERE tag_id = ?)`

func (q *Queries) DeleteTaggedTransactions(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteTaggedTransactions, id)
	return err
}
