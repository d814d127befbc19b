package budget

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func spend(value string, date time.Time, account, category uuid.UUID) core.Transaction {
	return core.Transaction{ID: uuid.New(), Type: core.Spending, Value: dec(value), Date: date, AccountID: account, CategoryID: category}
}

func TestStatusMonthly(t *testing.T) {
	acc, food, rent := uuid.New(), uuid.New(), uuid.New()
	b := core.Budget{ID: uuid.New(), Name: "Food", Limit: dec("200"), Period: core.Monthly, CategoryID: &food}
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	txs := []core.Transaction{
		spend("120", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), acc, food),
		spend("30.55", time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), acc, food),
		spend("500", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), acc, rent),
		spend("80", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), acc, food),
		{ID: uuid.New(), Type: core.Income, Value: dec("1000"), Date: now, AccountID: acc, CategoryID: food},
	}

	r := Status(b, now, time.Monday, txs)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), r.End)
	assert.True(t, dec("150.55").Equal(r.Spent), r.Spent.String())
	assert.True(t, dec("49.45").Equal(r.Remaining))
	assert.True(t, dec("0.7528").Equal(r.Progress), r.Progress.String())
	assert.False(t, r.Overspent)
}

func TestStatusOverspentAccountScope(t *testing.T) {
	cash, card, cat := uuid.New(), uuid.New(), uuid.New()
	b := core.Budget{ID: uuid.New(), Name: "Cash", Limit: dec("50"), Period: core.Weekly, AccountID: &cash}
	// Wednesday.
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	r := Status(b, now, time.Monday, []core.Transaction{
		spend("40", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), cash, cat),
		spend("25", time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC), cash, cat),
		spend("99", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), card, cat),
	})
	assert.True(t, r.Overspent)
	assert.True(t, dec("-15").Equal(r.Remaining))
	assert.True(t, dec("1.3").Equal(r.Progress))
}

func TestHistory(t *testing.T) {
	acc, cat := uuid.New(), uuid.New()
	b := core.Budget{ID: uuid.New(), Name: "All", Limit: dec("100"), Period: core.Monthly}
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		spend("10", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), acc, cat),
		spend("20", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), acc, cat),
	}

	h, err := History(b, now, time.Monday, 3, txs)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, time.March, h[0].Start.Month())
	assert.Equal(t, time.February, h[1].Start.Month())
	assert.Equal(t, time.January, h[2].Start.Month())
	assert.Equal(t, h[1].End, h[0].Start)
	assert.True(t, dec("10").Equal(h[0].Spent))
	assert.True(t, h[1].Spent.IsZero())
	assert.True(t, dec("20").Equal(h[2].Spent))

	from, to := HistoryRange(b, now, time.Monday, 3)
	assert.Equal(t, h[2].Start, from)
	assert.Equal(t, h[0].End, to)

	_, err = History(b, now, time.Monday, 0, txs)
	assert.Error(t, err)
}
