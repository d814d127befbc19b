package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/filter"
	"fintrack/internal/memory"
	"fintrack/internal/settings"
)

var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (*LedgerService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub, nil)
	svc.now = func() time.Time { return testNow }
	svc.SetLocation(time.UTC)
	require.NoError(t, svc.Seed(context.Background()))
	return svc, pub
}

func mustAccount(t *testing.T, svc *LedgerService, name, currency, starting string) core.BalanceAccount {
	t.Helper()
	a, err := svc.CreateAccount(context.Background(), core.BalanceAccount{Name: name, Currency: currency, StartingBalance: dec(starting), Color: "blue"})
	require.NoError(t, err)
	return a
}

func mustCategory(t *testing.T, svc *LedgerService, typ core.CategoryType, name string) core.Category {
	t.Helper()
	c, err := svc.CreateCategory(context.Background(), core.Category{Type: typ, Name: name})
	require.NoError(t, err)
	return c
}

func balanceOf(t *testing.T, svc *LedgerService, id uuid.UUID) string {
	t.Helper()
	a, err := svc.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance.StringFixed(2)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cats, err := svc.ListCategories(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	require.NoError(t, svc.Seed(ctx))
	again, err := svc.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, again, len(cats), "seeding twice does not duplicate")

	prefs, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EUR", prefs.DefaultCurrency)
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	a, err := svc.CreateAccount(ctx, core.BalanceAccount{Name: "  Wallet ", Currency: "usd", StartingBalance: dec("10.005"), Icon: "no-such-icon", Color: "green"})
	require.NoError(t, err)
	assert.Equal(t, "Wallet", a.Name)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, "10.01", a.Balance.StringFixed(2))
	assert.Equal(t, "circle", a.Icon)
	assert.True(t, strings.HasPrefix(a.Color, "#"))
	assert.Equal(t, testNow, a.CreatedAt)
	assert.Equal(t, publishedEvent{amqp.KindCreated, EntityAccount, a.ID}, pub.last())

	_, err = svc.CreateAccount(ctx, core.BalanceAccount{Name: "X", Currency: "EURO", Color: "red"})
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
	_, err = svc.CreateAccount(ctx, core.BalanceAccount{Name: "X", Currency: "EUR", Color: "chartreuse"})
	assert.ErrorIs(t, err, core.ErrInvalidColor)
	_, err = svc.CreateAccount(ctx, core.BalanceAccount{Name: " ", Currency: "EUR"})
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)
	acc := mustAccount(t, svc, "Main", "EUR", "100")
	food := mustCategory(t, svc, core.Spending, "Food")
	salary := mustCategory(t, svc, core.Income, "Pay")

	tx, err := svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("12.345"), Date: testNow, AccountID: acc.ID, CategoryID: food.ID, Comment: " lunch "})
	require.NoError(t, err)
	assert.Equal(t, "12.35", tx.Value.StringFixed(2))
	assert.Equal(t, "lunch", tx.Comment)
	assert.Equal(t, "87.65", balanceOf(t, svc, acc.ID))
	assert.Equal(t, publishedEvent{amqp.KindCreated, EntityTransaction, tx.ID}, pub.last())

	tx.Value = dec("20")
	_, err = svc.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, "80.00", balanceOf(t, svc, acc.ID))

	_, err = svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("1"), Date: testNow, AccountID: acc.ID, CategoryID: salary.ID})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	_, err = svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("1"), Date: testNow, AccountID: uuid.New(), CategoryID: food.ID})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("1"), Date: testNow, AccountID: acc.ID, CategoryID: food.ID, TagIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("0"), Date: testNow, AccountID: acc.ID, CategoryID: food.ID})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	require.NoError(t, svc.DeleteTransaction(ctx, tx.ID))
	assert.Equal(t, "100.00", balanceOf(t, svc, acc.ID))
	assert.Equal(t, publishedEvent{amqp.KindDeleted, EntityTransaction, tx.ID}, pub.last())
}

func TestTransactionTagsAreDeduplicated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	acc := mustAccount(t, svc, "Main", "EUR", "0")
	food := mustCategory(t, svc, core.Spending, "Food")
	tag, err := svc.CreateTag(ctx, core.Tag{Name: "trip"})
	require.NoError(t, err)

	tx, err := svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("5"), Date: testNow, AccountID: acc.ID, CategoryID: food.ID, TagIDs: []uuid.UUID{tag.ID, tag.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tag.ID}, tx.TagIDs)

	_, err = svc.CreateTag(ctx, core.Tag{Name: "TRIP"})
	assert.ErrorIs(t, err, core.ErrDuplicateTag)
}

func TestTransfers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	eur := mustAccount(t, svc, "Checking", "EUR", "500")
	savings := mustAccount(t, svc, "Savings", "EUR", "0")
	usd := mustAccount(t, svc, "Travel", "USD", "0")

	tr, err := svc.CreateTransfer(ctx, core.Transfer{FromAccountID: eur.ID, ToAccountID: savings.ID, Value: dec("100"), Date: testNow})
	require.NoError(t, err)
	assert.True(t, tr.Rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "400.00", balanceOf(t, svc, eur.ID))
	assert.Equal(t, "100.00", balanceOf(t, svc, savings.ID))

	_, err = svc.CreateTransfer(ctx, core.Transfer{FromAccountID: eur.ID, ToAccountID: usd.ID, Value: dec("100"), Date: testNow})
	assert.ErrorIs(t, err, core.ErrRateRequired)

	_, err = svc.CreateTransfer(ctx, core.Transfer{FromAccountID: eur.ID, ToAccountID: usd.ID, Value: dec("100"), Rate: dec("1.0857"), Date: testNow})
	require.NoError(t, err)
	assert.Equal(t, "108.57", balanceOf(t, svc, usd.ID))
	assert.Equal(t, "300.00", balanceOf(t, svc, eur.ID))

	_, err = svc.CreateTransfer(ctx, core.Transfer{FromAccountID: eur.ID, ToAccountID: eur.ID, Value: dec("1"), Date: testNow})
	assert.ErrorIs(t, err, core.ErrSameAccount)

	require.NoError(t, svc.DeleteTransfer(ctx, tr.ID))
	assert.Equal(t, "400.00", balanceOf(t, svc, eur.ID))
}

func TestDeleteCategoryPolicies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	acc := mustAccount(t, svc, "Main", "EUR", "0")
	food := mustCategory(t, svc, core.Spending, "Food")
	groceries := mustCategory(t, svc, core.Spending, "Groceries")
	pay := mustCategory(t, svc, core.Income, "Pay")

	tx, err := svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("5"), Date: testNow, AccountID: acc.ID, CategoryID: food.ID})
	require.NoError(t, err)

	err = svc.DeleteCategory(ctx, food.ID, core.DeletePolicy{Mode: core.Reassign, Target: pay.ID})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	err = svc.DeleteCategory(ctx, food.ID, core.DeletePolicy{Mode: core.Detach})
	assert.ErrorIs(t, err, core.ErrInvalidPolicy)

	require.NoError(t, svc.DeleteCategory(ctx, food.ID, core.DeletePolicy{Mode: core.Reassign, Target: groceries.ID}))
	got, err := svc.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, groceries.ID, got.CategoryID)

	require.NoError(t, svc.DeleteCategory(ctx, groceries.ID, core.DeletePolicy{Mode: core.Cascade}))
	_, err = svc.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "0.00", balanceOf(t, svc, acc.ID))
}

func TestUpdateCategoryKeepsTypeAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustCategory(t, svc, core.Spending, "Food")

	_, err := svc.UpdateCategory(ctx, core.Category{ID: c.ID, Type: core.Income, Name: "Food"})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	got, err := svc.UpdateCategory(ctx, core.Category{ID: c.ID, Name: "Eating out", Color: "orange"})
	require.NoError(t, err)
	assert.Equal(t, core.Spending, got.Type)
	assert.Equal(t, c.Order, got.Order)
}

func TestReorderCategories(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a := mustCategory(t, svc, core.Income, "A")
	b := mustCategory(t, svc, core.Income, "B")

	require.NoError(t, svc.ReorderCategories(ctx, []uuid.UUID{b.ID, a.ID}))
	got, err := svc.GetCategory(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order)

	assert.Error(t, svc.ReorderCategories(ctx, []uuid.UUID{a.ID, a.ID}))
	assert.ErrorIs(t, svc.ReorderCategories(ctx, []uuid.UUID{uuid.New()}), core.ErrNotFound)
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	acc := mustAccount(t, svc, "Main", "EUR", "0")
	food := mustCategory(t, svc, core.Spending, "Food")
	pay := mustCategory(t, svc, core.Income, "Pay")

	_, err := svc.CreateBudget(ctx, core.Budget{Name: "Pay", Limit: dec("10"), Period: core.Monthly, CategoryID: &pay.ID})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = svc.CreateBudget(ctx, core.Budget{Name: "Bad", Limit: dec("10"), Period: "fortnight"})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	b, err := svc.CreateBudget(ctx, core.Budget{Name: "Food", Limit: dec("100"), Period: core.Monthly, CategoryID: &food.ID})
	require.NoError(t, err)

	for _, d := range []time.Time{testNow, testNow.AddDate(0, -1, 0)} {
		_, err := svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("40"), Date: d, AccountID: acc.ID, CategoryID: food.ID})
		require.NoError(t, err)
	}

	status, err := svc.BudgetStatus(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(status.Spent))
	assert.True(t, dec("60").Equal(status.Remaining))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), status.Start)

	history, err := svc.BudgetHistory(ctx, b.ID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, dec("40").Equal(history[1].Spent))
	assert.True(t, history[2].Spent.IsZero())

	_, err = svc.BudgetHistory(ctx, b.ID, 0)
	assert.Error(t, err)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	prefs, err := svc.UpdateSettings(ctx, map[string]string{settings.KeyWeekStart: "sunday", settings.KeyReminderEnabled: "true"})
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, prefs.WeekStart)
	assert.True(t, prefs.ReminderEnabled)
	assert.Equal(t, EntitySettings, pub.last().entity)

	_, err = svc.UpdateSettings(ctx, map[string]string{settings.KeyWeekStart: "monday", "theme": "dark"})
	assert.ErrorIs(t, err, settings.ErrUnknownKey)
	prefs, err = svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, prefs.WeekStart, "nothing stored when one pair is invalid")
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")
	a := mustAccount(t, svc, "Main", "EUR", "1")
	assert.Equal(t, "1.00", balanceOf(t, svc, a.ID))
}

func TestNilPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil)
	_, err := svc.CreateAccount(context.Background(), core.BalanceAccount{Name: "Main", Currency: "EUR"})
	require.NoError(t, err)
}

func TestOnWriteHooks(t *testing.T) {
	svc, _ := newTestService(t)
	calls := 0
	svc.OnWrite(func() { calls++ })
	mustAccount(t, svc, "Main", "EUR", "0")
	mustCategory(t, svc, core.Spending, "Food")
	assert.Equal(t, 2, calls)
}

func TestSearchTransactions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	acc := mustAccount(t, svc, "Main", "EUR", "0")
	food := mustCategory(t, svc, core.Spending, "Food")
	for i, comment := range []string{"coffee", "groceries", "cofee beans"} {
		_, err := svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: decimal.NewFromInt(int64(i + 1)), Date: testNow.AddDate(0, 0, -i), AccountID: acc.ID, CategoryID: food.ID, Comment: comment})
		require.NoError(t, err)
	}

	got, err := svc.SearchTransactions(ctx, filter.Criteria{Query: "coffee", Fuzzy: true, Sort: filter.ValueDesc})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cofee beans", got[0].Comment)

	_, err = svc.SearchTransactions(ctx, filter.Criteria{Sort: "random"})
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	acc := mustAccount(t, svc, "Main", "EUR", "10")
	food := mustCategory(t, svc, core.Spending, "Food")
	_, err := svc.CreateTransaction(ctx, core.Transaction{Type: core.Spending, Value: dec("2.50"), Date: testNow, AccountID: acc.ID, CategoryID: food.ID})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportJSON(ctx, &buf))

	target, _ := newTestService(t)
	snap, err := target.ImportJSON(ctx, &buf)
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 1)
	assert.Equal(t, "7.50", balanceOf(t, target, acc.ID))

	var csvBuf bytes.Buffer
	require.NoError(t, target.ExportCSV(ctx, &csvBuf, testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, 1)))
	assert.Contains(t, csvBuf.String(), "2024-03-15,spending,Main,Food,,2.50,EUR,")

	assert.Error(t, target.ExportCSV(ctx, &csvBuf, testNow, testNow))
}

func TestRecalculateBalances(t *testing.T) {
	svc, pub := newTestService(t)
	require.NoError(t, svc.RecalculateBalances(context.Background()))
	assert.Equal(t, EntityLedger, pub.last().entity)
}
