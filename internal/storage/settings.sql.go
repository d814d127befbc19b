package storage

import (
	"context"
	"time"
)

const getSetting = `-- name: GetSetting :one
SELECT value FROM settings WHERE key = ?`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := q.db.QueryRowContext(ctx, getSetting, key).Scan(&v)
	return v, err
}

const upsertSetting = `-- name: UpsertSetting :exec
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (q *Queries) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, key, value, formatTime(time.Now()))
	return err
}

const listSettings = `-- name: ListSettings :many
SELECT key, value FROM settings ORDER BY key`

func (q *Queries) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
