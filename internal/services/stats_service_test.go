package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/stats"
)

func newStatsFixture(t *testing.T) (*LedgerService, *StatsService, *cache.LRUCache[any]) {
	t.Helper()
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := cache.NewLRUCache[any](16, time.Minute)
	st := NewStatsService(svc.Store(), c, nil)
	svc.OnWrite(st.Invalidate)

	eur := mustAccount(t, svc, "Main", "EUR", "0")
	usd := mustAccount(t, svc, "Travel", "USD", "0")
	food := mustCategory(t, svc, core.Spending, "Food")
	pay := mustCategory(t, svc, core.Income, "Pay")

	for _, tx := range []core.Transaction{
		{Type: core.Income, Value: dec("1000"), Date: testNow.AddDate(0, -1, 0), AccountID: eur.ID, CategoryID: pay.ID},
		{Type: core.Spending, Value: dec("200"), Date: testNow, AccountID: eur.ID, CategoryID: food.ID},
		{Type: core.Spending, Value: dec("999"), Date: testNow, AccountID: usd.ID, CategoryID: food.ID},
	} {
		_, err := svc.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
	return svc, st, c
}

func TestStatsSummaryDefaultCurrency(t *testing.T) {
	_, st, _ := newStatsFixture(t)
	s, err := st.Summary(context.Background(), StatsQuery{})
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(s.Income))
	assert.True(t, dec("200").Equal(s.Spending))
	assert.Equal(t, 2, s.Count)

	usd, err := st.Summary(context.Background(), StatsQuery{Currency: "usd"})
	require.NoError(t, err)
	assert.True(t, dec("999").Equal(usd.Spending))
	assert.Equal(t, 1, usd.Count)

	_, err = st.Summary(context.Background(), StatsQuery{Currency: "dollars"})
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

func TestStatsCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	svc, st, c := newStatsFixture(t)

	_, err := st.Summary(ctx, StatsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Size())

	_, err = st.Summary(ctx, StatsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Size())

	mustAccount(t, svc, "Cash", "EUR", "0")
	assert.Equal(t, 0, c.Size())
}

// writeDuringList runs a ledger write while statistics inputs are loading.
type writeDuringList struct {
	ports.Store
	write func()
}

func (s *writeDuringList) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	txs, err := s.Store.ListTransactions(ctx, q)
	if s.write != nil {
		s.write()
		s.write = nil
	}
	return txs, err
}

func TestStatsResultNotCachedAcrossWrite(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newStatsFixture(t)
	c := cache.NewLRUCache[any](16, time.Minute)
	store := &writeDuringList{Store: svc.Store()}
	st := NewStatsService(store, c, nil)
	svc.OnWrite(st.Invalidate)

	food := mustCategory(t, svc, core.Spending, "Groceries")
	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	var eur core.BalanceAccount
	for _, a := range accounts {
		if a.Currency == "EUR" {
			eur = a
		}
	}
	var writeErr error
	store.write = func() {
		_, writeErr = svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("50"), Date: testNow, AccountID: eur.ID, CategoryID: food.ID})
	}

	stale, err := st.Summary(ctx, StatsQuery{})
	require.NoError(t, err)
	require.NoError(t, writeErr)
	assert.True(t, dec("200").Equal(stale.Spending), stale.Spending.String())
	assert.Equal(t, 0, c.Size(), "result computed across a write is not cached")

	fresh, err := st.Summary(ctx, StatsQuery{})
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(fresh.Spending), fresh.Spending.String())
	assert.Equal(t, 1, c.Size())
}

func TestStatsCategoriesAndTimeline(t *testing.T) {
	ctx := context.Background()
	_, st, _ := newStatsFixture(t)

	slices, err := st.Categories(ctx, StatsQuery{})
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, "Food", slices[0].Name)
	assert.True(t, dec("100").Equal(slices[0].Share))

	_, err = st.Timeline(ctx, StatsQuery{})
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	bars, err := st.Timeline(ctx, StatsQuery{
		From:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Bucket: stats.BucketMonth,
	})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.True(t, bars[0].Net.IsZero())
	assert.True(t, dec("1000").Equal(bars[1].Income))
	assert.True(t, dec("-200").Equal(bars[2].Net))

	tags, err := st.Tags(ctx, StatsQuery{})
	require.NoError(t, err)
	assert.Empty(t, tags)
}
