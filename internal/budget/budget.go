// Package budget rolls transactions up into budget periods.
package budget

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// MaxHistory caps the number of periods History returns.
const MaxHistory = 120

// Rollup is the state of a budget over one period [Start, End).
type Rollup struct {
	BudgetID  uuid.UUID       `json:"budget_id"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Progress  decimal.Decimal `json:"progress"`
	Overspent bool            `json:"overspent"`
}

// Status rolls up the period containing now.
func Status(b core.Budget, now time.Time, weekStart time.Weekday, txs []core.Transaction) Rollup {
	start, end := b.Period.Bounds(now, weekStart)
	return rollup(b, start, end, txs)
}

// History returns the last n rollups, newest first. The first entry is the
// current period.
func History(b core.Budget, now time.Time, weekStart time.Weekday, n int, txs []core.Transaction) ([]Rollup, error) {
	if n < 1 || n > MaxHistory {
		return nil, fmt.Errorf("%w: history length must be between 1 and %d", core.ErrInvalidInput, MaxHistory)
	}
	start, end := b.Period.Bounds(now, weekStart)
	out := make([]Rollup, 0, n)
	for range n {
		out = append(out, rollup(b, start, end, txs))
		end = start
		start = b.Period.Previous(start)
	}
	return out, nil
}

// HistoryRange returns the interval covered by History(b, now, _, n), for
// loading only the transactions needed.
func HistoryRange(b core.Budget, now time.Time, weekStart time.Weekday, n int) (time.Time, time.Time) {
	start, end := b.Period.Bounds(now, weekStart)
	for i := 1; i < n; i++ {
		start = b.Period.Previous(start)
	}
	return start, end
}

func rollup(b core.Budget, start, end time.Time, txs []core.Transaction) Rollup {
	spent := decimal.Zero
	for _, t := range txs {
		if t.Date.Before(start) || !t.Date.Before(end) {
			continue
		}
		if b.Matches(t) {
			spent = spent.Add(t.Value)
		}
	}
	r := Rollup{
		BudgetID:  b.ID,
		Start:     start,
		End:       end,
		Limit:     b.Limit,
		Spent:     spent,
		Remaining: b.Limit.Sub(spent),
		Progress:  decimal.Zero,
		Overspent: spent.GreaterThan(b.Limit),
	}
	if b.Limit.IsPositive() {
		r.Progress = spent.Div(b.Limit).Round(4)
	}
	return r
}
