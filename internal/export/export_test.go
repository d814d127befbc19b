package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/memory"
)

type seeded struct {
	store             *memory.Store
	account           core.BalanceAccount
	food, salary      core.Category
	travel            core.Tag
	lunch, pay, train core.Transaction
}

func seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	s := seeded{store: memory.New()}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.account = core.BalanceAccount{ID: uuid.New(), Name: "Main", Currency: "EUR", StartingBalance: decimal.NewFromInt(100), Icon: "bank", Color: "#007AFF", CreatedAt: created}
	s.food = core.Category{ID: uuid.New(), Type: core.Spending, Name: "Food", Icon: "cart", Color: "#FF3B30"}
	s.salary = core.Category{ID: uuid.New(), Type: core.Income, Name: "Salary", Icon: "briefcase", Color: "#34C759", Order: 1}
	s.travel = core.Tag{ID: uuid.New(), Name: "travel", Color: "#5856D6"}

	s.lunch = core.Transaction{ID: uuid.New(), Type: core.Spending, Comment: "Lunch, downtown", Value: decimal.RequireFromString("12.5"), Date: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), AccountID: s.account.ID, CategoryID: s.food.ID, CreatedAt: created}
	s.train = core.Transaction{ID: uuid.New(), Type: core.Spending, Comment: "Train", Value: decimal.RequireFromString("40"), Date: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), AccountID: s.account.ID, CategoryID: s.food.ID, TagIDs: []uuid.UUID{s.travel.ID}, CreatedAt: created.Add(time.Hour)}
	s.pay = core.Transaction{ID: uuid.New(), Type: core.Income, Value: decimal.NewFromInt(1000), Date: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), AccountID: s.account.ID, CategoryID: s.salary.ID, CreatedAt: created}

	require.NoError(t, s.store.CreateAccount(ctx, s.account))
	require.NoError(t, s.store.CreateCategory(ctx, s.food))
	require.NoError(t, s.store.CreateCategory(ctx, s.salary))
	require.NoError(t, s.store.CreateTag(ctx, s.travel))
	for _, tx := range []core.Transaction{s.train, s.lunch, s.pay} {
		require.NoError(t, s.store.CreateTransaction(ctx, tx))
	}
	require.NoError(t, s.store.SetSetting(ctx, "default_currency", "EUR"))
	return s
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	snap, err := Snapshot(ctx, s.store, now)
	require.NoError(t, err)
	assert.Equal(t, core.SnapshotVersion, snap.Version)
	assert.Len(t, snap.Transactions, 3)
	assert.Len(t, snap.Categories, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))
	assert.Contains(t, buf.String(), `"version": 1`)

	decoded, err := ReadJSON(&buf)
	require.NoError(t, err)

	target := memory.New()
	require.NoError(t, Import(ctx, target, decoded))

	acc, err := target.GetAccount(ctx, s.account.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1047.50").Equal(acc.Balance), acc.Balance.String())

	txs, err := target.ListTransactions(ctx, core.TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	v, ok, err := target.GetSetting(ctx, "default_currency")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "EUR", v)
}

func TestImportIntoNonEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	snap, err := Snapshot(ctx, s.store, time.Now())
	require.NoError(t, err)

	err = Import(ctx, s.store, snap)
	assert.ErrorIs(t, err, core.ErrStoreNotEmpty)
}

func TestReadJSONRejects(t *testing.T) {
	cases := map[string]string{
		"bad version":   `{"version": 2}`,
		"unknown field": `{"version": 1, "extra": true}`,
		"not json":      `version=1`,
		"dangling ref": `{"version": 1, "transactions": [{"id": "` + uuid.NewString() + `", "type": "spending", "value": "1",
			"date": "2024-01-01T00:00:00Z", "account_id": "` + uuid.NewString() + `", "category_id": "` + uuid.NewString() + `"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(body))
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestImportValidatesSettings(t *testing.T) {
	ctx := context.Background()
	cases := map[string]map[string]string{
		"bad currency":   {"default_currency": "eu"},
		"bad week start": {"week_start": "friday"},
		"unknown key":    {"theme": "dark"},
	}
	for name, prefs := range cases {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			err := Import(ctx, store, core.Snapshot{Version: core.SnapshotVersion, Settings: prefs})
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
			all, err := store.AllSettings(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}

	store := memory.New()
	err := Import(ctx, store, core.Snapshot{Version: core.SnapshotVersion, Settings: map[string]string{
		"default_currency": " usd", "week_start": "Sunday", "reminder_last_fired": "",
	}})
	require.NoError(t, err)
	all, err := store.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"default_currency": "USD", "week_start": "sunday"}, all)

	_, err = ReadJSON(strings.NewReader(`{"version": 1, "settings": {"default_currency": "eu"}}`))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestTransactionsCSV(t *testing.T) {
	s := seed(t)
	var buf bytes.Buffer
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, TransactionsCSV(context.Background(), s.store, &buf, from, to, time.UTC))

	want := "date,type,account,category,tags,value,currency,comment\n" +
		"2024-03-01,income,Main,Salary,,1000.00,EUR,\n" +
		"2024-03-05,spending,Main,Food,,12.50,EUR,\"Lunch, downtown\"\n" +
		"2024-03-05,spending,Main,Food,travel,40.00,EUR,Train\n"
	assert.Equal(t, want, buf.String())
}

func TestTransactionsCSVRange(t *testing.T) {
	s := seed(t)
	var buf bytes.Buffer
	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, TransactionsCSV(context.Background(), s.store, &buf, from, to, time.UTC))
	assert.Equal(t, strings.Join(CSVHeader, ",")+"\n", buf.String())
}
