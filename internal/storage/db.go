package storage

import (
	"context"
	"database/sql"
	"time"
)

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatBound renders an optional range bound; the zero time disables it.
func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
