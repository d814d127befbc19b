// Package storetest is a behavioural test suite shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// Opener returns a fresh, empty store. Cleanup is the caller's job.
type Opener func(t *testing.T) ports.Store

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ports.Store)
	}{
		{"AccountCRUD", testAccountCRUD},
		{"TransactionBalances", testTransactionBalances},
		{"TransferBalances", testTransferBalances},
		{"ListTransactionsRange", testListTransactionsRange},
		{"DeleteAccountReassign", testDeleteAccountReassign},
		{"DeleteAccountCascade", testDeleteAccountCascade},
		{"DeleteCategory", testDeleteCategory},
		{"Tags", testTags},
		{"TransactionTagOrder", testTransactionTagOrder},
		{"ReorderCategories", testReorderCategories},
		{"Budgets", testBudgets},
		{"Settings", testSettings},
		{"Import", testImport},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

var day = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func account(t *testing.T, s ports.Store, name, currency, starting string) core.BalanceAccount {
	t.Helper()
	a := core.BalanceAccount{
		ID:              core.NewID(),
		Name:            name,
		Currency:        currency,
		StartingBalance: money(starting),
		Icon:            "wallet.pass",
		Color:           "#34C759",
		CreatedAt:       day,
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func category(t *testing.T, s ports.Store, typ core.CategoryType, name string) core.Category {
	t.Helper()
	c := core.Category{ID: core.NewID(), Type: typ, Name: name, Icon: "circle", Color: "#8E8E93"}
	require.NoError(t, s.CreateCategory(context.Background(), c))
	return c
}

func tag(t *testing.T, s ports.Store, name string) core.Tag {
	t.Helper()
	tg := core.Tag{ID: core.NewID(), Name: name, Color: "#007AFF"}
	require.NoError(t, s.CreateTag(context.Background(), tg))
	return tg
}

func transaction(t *testing.T, s ports.Store, acc core.BalanceAccount, cat core.Category, value string, date time.Time, tags ...uuid.UUID) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:         core.NewID(),
		Type:       cat.Type,
		Value:      money(value),
		Date:       date,
		AccountID:  acc.ID,
		CategoryID: cat.ID,
		TagIDs:     tags,
		CreatedAt:  date,
	}
	require.NoError(t, s.CreateTransaction(context.Background(), tx))
	return tx
}

func balance(t *testing.T, s ports.Store, id uuid.UUID) string {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance.StringFixed(2)
}

func testAccountCRUD(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "Wallet", "EUR", "10.50")
	account(t, s, "Bank", "EUR", "0")

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wallet", got.Name)
	assert.Equal(t, "10.50", got.Balance.StringFixed(2))
	assert.True(t, got.CreatedAt.Equal(day))

	list, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bank", list[0].Name)

	a.Name = "Cash"
	a.StartingBalance = money("20")
	require.NoError(t, s.UpdateAccount(ctx, a))
	assert.Equal(t, "20.00", balance(t, s, a.ID))

	_, err = s.GetAccount(ctx, core.NewID())
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = s.UpdateAccount(ctx, core.BalanceAccount{ID: core.NewID(), Name: "x", Currency: "EUR", Color: "#000000"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testTransactionBalances(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "Wallet", "EUR", "100")
	b := account(t, s, "Bank", "EUR", "0")
	food := category(t, s, core.Spending, "Food")
	salary := category(t, s, core.Income, "Salary")

	spend := transaction(t, s, a, food, "25.10", day)
	transaction(t, s, a, salary, "1000", day)
	assert.Equal(t, "1074.90", balance(t, s, a.ID))

	spend.AccountID = b.ID
	spend.Value = money("5")
	spend.Comment = "moved"
	require.NoError(t, s.UpdateTransaction(ctx, spend))
	assert.Equal(t, "1100.00", balance(t, s, a.ID))
	assert.Equal(t, "-5.00", balance(t, s, b.ID))

	got, err := s.GetTransaction(ctx, spend.ID)
	require.NoError(t, err)
	assert.Equal(t, "moved", got.Comment)
	assert.True(t, got.Date.Equal(day))

	require.NoError(t, s.DeleteTransaction(ctx, spend.ID))
	assert.Equal(t, "0.00", balance(t, s, b.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, spend.ID), core.ErrNotFound)
}

func testTransferBalances(t *testing.T, s ports.Store) {
	ctx := context.Background()
	eur := account(t, s, "EUR", "EUR", "500")
	usd := account(t, s, "USD", "USD", "0")

	tr := core.Transfer{
		ID:            core.NewID(),
		FromAccountID: eur.ID,
		ToAccountID:   usd.ID,
		Value:         money("100"),
		Rate:          money("1.0837"),
		Date:          day,
		CreatedAt:     day,
	}
	require.NoError(t, s.CreateTransfer(ctx, tr))
	assert.Equal(t, "400.00", balance(t, s, eur.ID))
	assert.Equal(t, "108.37", balance(t, s, usd.ID))

	list, err := s.ListTransfers(ctx, core.TransactionQuery{AccountID: usd.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1.0837", list[0].Rate.String())

	require.NoError(t, s.DeleteTransfer(ctx, tr.ID))
	assert.Equal(t, "500.00", balance(t, s, eur.ID))
	assert.Equal(t, "0.00", balance(t, s, usd.ID))
}

func testListTransactionsRange(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "A", "EUR", "0")
	b := account(t, s, "B", "EUR", "0")
	food := category(t, s, core.Spending, "Food")

	first := transaction(t, s, a, food, "1", day)
	second := transaction(t, s, a, food, "2", day.AddDate(0, 0, 1))
	transaction(t, s, b, food, "3", day.AddDate(0, 0, 2))

	all, err := s.ListTransactions(ctx, core.TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Date.After(all[1].Date), "newest first")

	ranged, err := s.ListTransactions(ctx, core.TransactionQuery{From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, first.ID, ranged[0].ID)

	byAccount, err := s.ListTransactions(ctx, core.TransactionQuery{AccountID: a.ID, From: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, second.ID, byAccount[0].ID)
}

func testDeleteAccountReassign(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "A", "EUR", "10")
	b := account(t, s, "B", "EUR", "0")
	c := account(t, s, "C", "EUR", "0")
	food := category(t, s, core.Spending, "Food")
	transaction(t, s, a, food, "4", day)

	between := core.Transfer{ID: core.NewID(), FromAccountID: a.ID, ToAccountID: b.ID, Value: money("1"), Rate: money("1"), Date: day, CreatedAt: day}
	outside := core.Transfer{ID: core.NewID(), FromAccountID: a.ID, ToAccountID: c.ID, Value: money("2"), Rate: money("1"), Date: day, CreatedAt: day}
	require.NoError(t, s.CreateTransfer(ctx, between))
	require.NoError(t, s.CreateTransfer(ctx, outside))

	scope := a.ID
	budget := core.Budget{ID: core.NewID(), Name: "A budget", Limit: money("50"), Period: core.Monthly, AccountID: &scope, CreatedAt: day}
	require.NoError(t, s.CreateBudget(ctx, budget))

	err := s.DeleteAccount(ctx, a.ID, core.DeletePolicy{Mode: core.Reassign, Target: core.NewID()})
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.DeleteAccount(ctx, a.ID, core.DeletePolicy{Mode: core.Reassign, Target: b.ID}))

	_, err = s.GetAccount(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	txs, err := s.ListTransactions(ctx, core.TransactionQuery{AccountID: b.ID})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	_, err = s.GetTransfer(ctx, between.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "a transfer onto itself is dropped")
	moved, err := s.GetTransfer(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.FromAccountID)

	// B starts at 0, takes the -4 spending and sends 2 to C.
	assert.Equal(t, "-6.00", balance(t, s, b.ID))
	assert.Equal(t, "2.00", balance(t, s, c.ID))

	gotBudget, err := s.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	require.NotNil(t, gotBudget.AccountID)
	assert.Equal(t, b.ID, *gotBudget.AccountID)
}

func testDeleteAccountCascade(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "A", "EUR", "0")
	b := account(t, s, "B", "EUR", "0")
	food := category(t, s, core.Spending, "Food")
	tx := transaction(t, s, a, food, "4", day)
	tr := core.Transfer{ID: core.NewID(), FromAccountID: b.ID, ToAccountID: a.ID, Value: money("3"), Rate: money("1"), Date: day, CreatedAt: day}
	require.NoError(t, s.CreateTransfer(ctx, tr))
	assert.Equal(t, "-3.00", balance(t, s, b.ID))

	require.NoError(t, s.DeleteAccount(ctx, a.ID, core.DeletePolicy{Mode: core.Cascade}))

	_, err := s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetTransfer(ctx, tr.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "0.00", balance(t, s, b.ID))

	assert.ErrorIs(t, s.DeleteAccount(ctx, b.ID, core.DeletePolicy{Mode: core.Detach}), core.ErrInvalidPolicy)
}

func testDeleteCategory(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "A", "EUR", "0")
	food := category(t, s, core.Spending, "Food")
	groceries := category(t, s, core.Spending, "Groceries")
	salary := category(t, s, core.Income, "Salary")
	tx := transaction(t, s, a, food, "10", day)

	err := s.DeleteCategory(ctx, food.ID, core.DeletePolicy{Mode: core.Reassign, Target: salary.ID})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	require.NoError(t, s.DeleteCategory(ctx, food.ID, core.DeletePolicy{Mode: core.Reassign, Target: groceries.ID}))
	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, groceries.ID, got.CategoryID)
	assert.Equal(t, "-10.00", balance(t, s, a.ID))

	require.NoError(t, s.DeleteCategory(ctx, groceries.ID, core.DeletePolicy{Mode: core.Cascade}))
	_, err = s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "0.00", balance(t, s, a.ID))

	cats, err := s.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func testTags(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "A", "EUR", "0")
	food := category(t, s, core.Spending, "Food")
	trip := tag(t, s, "Trip")
	work := tag(t, s, "Work")
	extra := tag(t, s, "Extra")

	err := s.CreateTag(ctx, core.Tag{ID: core.NewID(), Name: "trip", Color: "#000000"})
	assert.ErrorIs(t, err, core.ErrDuplicateTag)
	work.Name = "TRIP"
	assert.ErrorIs(t, s.UpdateTag(ctx, work), core.ErrDuplicateTag)

	tx1 := transaction(t, s, a, food, "1", day, trip.ID, work.ID)
	tx2 := transaction(t, s, a, food, "2", day, extra.ID)

	got, err := s.GetTransaction(ctx, tx1.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{trip.ID, work.ID}, got.TagIDs)

	// Reassign trip onto work: tx1 already has work, so it keeps one link.
	require.NoError(t, s.DeleteTag(ctx, trip.ID, core.DeletePolicy{Mode: core.Reassign, Target: work.ID}))
	got, err = s.GetTransaction(ctx, tx1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{work.ID}, got.TagIDs)

	require.NoError(t, s.DeleteTag(ctx, work.ID, core.DeletePolicy{Mode: core.Detach}))
	got, err = s.GetTransaction(ctx, tx1.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagIDs)

	require.NoError(t, s.DeleteTag(ctx, extra.ID, core.DeletePolicy{Mode: core.Cascade}))
	_, err = s.GetTransaction(ctx, tx2.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "-1.00", balance(t, s, a.ID))

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func testTransactionTagOrder(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := account(t, s, "A", "EUR", "0")
	food := category(t, s, core.Spending, "Food")
	work := tag(t, s, "work")
	alpha := tag(t, s, "Alpha")
	beta := tag(t, s, "beta")

	tx := transaction(t, s, a, food, "1", day, work.ID, beta.ID, alpha.ID)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alpha.ID, beta.ID, work.ID}, got.TagIDs)

	listed, err := s.ListTransactions(ctx, core.TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, got.TagIDs, listed[0].TagIDs)

	// Renaming a tag moves it within every transaction's list.
	work.Name = "Aardvark"
	require.NoError(t, s.UpdateTag(ctx, work))
	got, err = s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{work.ID, alpha.ID, beta.ID}, got.TagIDs)
}

func testReorderCategories(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := category(t, s, core.Spending, "A")
	b := category(t, s, core.Spending, "B")
	c := category(t, s, core.Spending, "C")
	category(t, s, core.Income, "Salary")

	require.NoError(t, s.ReorderCategories(ctx, []uuid.UUID{c.ID, a.ID, b.ID}))
	cats, err := s.ListCategories(ctx, core.Spending)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{cats[0].Name, cats[1].Name, cats[2].Name})

	assert.ErrorIs(t, s.ReorderCategories(ctx, []uuid.UUID{core.NewID()}), core.ErrNotFound)
}

func testBudgets(t *testing.T, s ports.Store) {
	ctx := context.Background()
	food := category(t, s, core.Spending, "Food")
	scope := food.ID
	b := core.Budget{ID: core.NewID(), Name: "Food", Limit: money("300"), Period: core.Monthly, CategoryID: &scope, CreatedAt: day}
	require.NoError(t, s.CreateBudget(ctx, b))

	b.Limit = money("250")
	b.Period = core.Weekly
	b.CategoryID = nil
	require.NoError(t, s.UpdateBudget(ctx, b))

	got, err := s.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.00", got.Limit.StringFixed(2))
	assert.Equal(t, core.Weekly, got.Period)
	assert.Nil(t, got.CategoryID)

	list, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteBudget(ctx, b.ID))
	assert.ErrorIs(t, s.DeleteBudget(ctx, b.ID), core.ErrNotFound)
}

func testSettings(t *testing.T, s ports.Store) {
	ctx := context.Background()
	_, ok, err := s.GetSetting(ctx, "default_currency")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "default_currency", "USD"))
	require.NoError(t, s.SetSetting(ctx, "default_currency", "CHF"))
	v, ok, err := s.GetSetting(ctx, "default_currency")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "CHF", v)

	all, err := s.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"default_currency": "CHF"}, all)
}

func testImport(t *testing.T, s ports.Store) {
	ctx := context.Background()
	acc := core.BalanceAccount{ID: core.NewID(), Name: "Main", Currency: "EUR", StartingBalance: money("5"), Balance: money("999"), Icon: "circle", Color: "#000000", CreatedAt: day}
	cat := core.Category{ID: core.NewID(), Type: core.Income, Name: "Salary", Icon: "circle", Color: "#000000"}
	tg := core.Tag{ID: core.NewID(), Name: "bonus", Color: "#000000"}
	tx := core.Transaction{ID: core.NewID(), Type: core.Income, Value: money("10"), Date: day, AccountID: acc.ID, CategoryID: cat.ID, TagIDs: []uuid.UUID{tg.ID}, CreatedAt: day}
	snap := core.Snapshot{
		Version:      core.SnapshotVersion,
		Accounts:     []core.BalanceAccount{acc},
		Categories:   []core.Category{cat},
		Tags:         []core.Tag{tg},
		Transactions: []core.Transaction{tx},
		Settings:     map[string]string{"week_start": "sunday"},
	}
	category(t, s, core.Spending, "Seeded")
	require.NoError(t, s.Import(ctx, snap))
	assert.Equal(t, "15.00", balance(t, s, acc.ID), "balances are recomputed")

	cats, err := s.ListCategories(ctx, "")
	require.NoError(t, err)
	require.Len(t, cats, 1, "seeded categories are replaced")
	assert.Equal(t, cat.ID, cats[0].ID)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tg.ID}, got.TagIDs)

	v, _, err := s.GetSetting(ctx, "week_start")
	require.NoError(t, err)
	assert.Equal(t, "sunday", v)

	assert.ErrorIs(t, s.Import(ctx, snap), core.ErrStoreNotEmpty)

	require.NoError(t, s.RecalculateBalances(ctx))
	assert.Equal(t, "15.00", balance(t, s, acc.ID))
}
