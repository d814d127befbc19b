package filter

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

type fixture struct {
	cash, card       uuid.UUID
	food, salary     core.Category
	travel, work     core.Tag
	txs              []core.Transaction
	lookup           Lookup
	groceries, lunch core.Transaction
	pay, train       core.Transaction
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC)
}

func newFixture() fixture {
	f := fixture{cash: uuid.New(), card: uuid.New()}
	f.food = core.Category{ID: uuid.New(), Type: core.Spending, Name: "Groceries"}
	f.salary = core.Category{ID: uuid.New(), Type: core.Income, Name: "Salary"}
	f.travel = core.Tag{ID: uuid.New(), Name: "travel"}
	f.work = core.Tag{ID: uuid.New(), Name: "work"}

	f.groceries = core.Transaction{ID: uuid.New(), Type: core.Spending, Comment: "Weekly shopping", Value: decimal.RequireFromString("54.20"), Date: day(3), AccountID: f.card, CategoryID: f.food.ID}
	f.lunch = core.Transaction{ID: uuid.New(), Type: core.Spending, Comment: "Lunch with team", Value: decimal.RequireFromString("18.00"), Date: day(5), AccountID: f.cash, CategoryID: f.food.ID, TagIDs: []uuid.UUID{f.work.ID}}
	f.train = core.Transaction{ID: uuid.New(), Type: core.Spending, Comment: "Train to Berlin", Value: decimal.RequireFromString("89.90"), Date: day(7), AccountID: f.card, CategoryID: f.food.ID, TagIDs: []uuid.UUID{f.travel.ID, f.work.ID}}
	f.pay = core.Transaction{ID: uuid.New(), Type: core.Income, Comment: "", Value: decimal.RequireFromString("2500"), Date: day(1), AccountID: f.card, CategoryID: f.salary.ID}

	f.txs = []core.Transaction{f.train, f.lunch, f.groceries, f.pay}
	f.lookup = NewLookup([]core.Category{f.food, f.salary}, []core.Tag{f.travel, f.work})
	return f
}

func ids(txs []core.Transaction) []uuid.UUID {
	out := make([]uuid.UUID, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func TestApply(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name     string
		criteria Criteria
		want     []core.Transaction
	}{
		{"no criteria sorts date desc", Criteria{}, []core.Transaction{f.train, f.lunch, f.groceries, f.pay}},
		{"date range is half open", Criteria{From: day(3), To: day(7)}, []core.Transaction{f.lunch, f.groceries}},
		{"account", Criteria{AccountIDs: []uuid.UUID{f.cash}}, []core.Transaction{f.lunch}},
		{"type", Criteria{Type: core.Income}, []core.Transaction{f.pay}},
		{"category", Criteria{CategoryIDs: []uuid.UUID{f.salary.ID}}, []core.Transaction{f.pay}},
		{"tags any", Criteria{TagIDs: []uuid.UUID{f.travel.ID, f.work.ID}}, []core.Transaction{f.train, f.lunch}},
		{"tags all", Criteria{TagIDs: []uuid.UUID{f.travel.ID, f.work.ID}, TagMode: MatchAll}, []core.Transaction{f.train}},
		{"min value", Criteria{MinValue: decimal.NewNullDecimal(decimal.NewFromInt(50)), Type: core.Spending}, []core.Transaction{f.train, f.groceries}},
		{"max value", Criteria{MaxValue: decimal.NewNullDecimal(decimal.NewFromInt(18))}, []core.Transaction{f.lunch}},
		{"value asc", Criteria{Sort: ValueAsc}, []core.Transaction{f.lunch, f.groceries, f.train, f.pay}},
		{"value desc", Criteria{Sort: ValueDesc}, []core.Transaction{f.pay, f.train, f.groceries, f.lunch}},
		{"date asc", Criteria{Sort: DateAsc}, []core.Transaction{f.pay, f.groceries, f.lunch, f.train}},
		{"comment substring", Criteria{Query: "BERLIN"}, []core.Transaction{f.train}},
		{"category name", Criteria{Query: "salary"}, []core.Transaction{f.pay}},
		{"tag name", Criteria{Query: "travel"}, []core.Transaction{f.train}},
		{"typo without fuzzy", Criteria{Query: "berlim"}, []core.Transaction{}},
		{"typo with fuzzy", Criteria{Query: "berlim", Fuzzy: true}, []core.Transaction{f.train}},
		{"short word tolerates one edit", Criteria{Query: "lunh", Fuzzy: true}, []core.Transaction{f.lunch}},
		{"short word rejects two edits", Criteria{Query: "lnh", Fuzzy: true}, []core.Transaction{}},
		{"every query word must match", Criteria{Query: "train paris", Fuzzy: true}, []core.Transaction{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.criteria.Validate())
			got := tt.criteria.Apply(f.txs, f.lookup)
			assert.Equal(t, ids(tt.want), ids(got))
		})
	}
}

func TestApplyIsStableAndPure(t *testing.T) {
	f := newFixture()
	a := f.lunch
	a.ID = uuid.New()
	a.Value = f.groceries.Value
	input := []core.Transaction{f.groceries, a}
	got := Criteria{Sort: ValueAsc}.Apply(input, f.lookup)
	assert.Equal(t, ids(input), ids(got))

	before := ids(f.txs)
	Criteria{Sort: ValueAsc}.Apply(f.txs, f.lookup)
	assert.Equal(t, before, ids(f.txs))
}

func TestMaxDistance(t *testing.T) {
	assert.Equal(t, 1, MaxDistance("food"))
	assert.Equal(t, 2, MaxDistance("train"))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Criteria{From: day(5), To: day(5)}.Validate())
	assert.Error(t, Criteria{TagMode: "some"}.Validate())
	assert.Error(t, Criteria{Sort: "name"}.Validate())
	assert.Error(t, Criteria{Type: "gift"}.Validate())
	assert.Error(t, Criteria{
		MinValue: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		MaxValue: decimal.NewNullDecimal(decimal.NewFromInt(5)),
	}.Validate())
}

func TestParseQuery(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	v := url.Values{
		"from":     {"2024-03-01"},
		"to":       {"2024-04-01"},
		"account":  {a.String() + "," + b.String()},
		"tag":      {a.String()},
		"tag_mode": {"ALL"},
		"type":     {"spending"},
		"min":      {"10,5"},
		"q":        {"coffee"},
		"fuzzy":    {"true"},
		"sort":     {"value_desc"},
	}
	c, err := ParseQuery(v, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), c.From)
	assert.Equal(t, []uuid.UUID{a, b}, c.AccountIDs)
	assert.Equal(t, MatchAll, c.TagMode)
	assert.Equal(t, core.Spending, c.Type)
	assert.True(t, c.MinValue.Valid)
	assert.Equal(t, "10.5", c.MinValue.Decimal.String())
	assert.True(t, c.Fuzzy)
	assert.Equal(t, ValueDesc, c.Sort)
}

func TestParseQueryErrors(t *testing.T) {
	cases := []url.Values{
		{"from": {"03/01/2024"}},
		{"account": {"nope"}},
		{"type": {"gift"}},
		{"min": {"abc"}},
		{"fuzzy": {"perhaps"}},
		{"from": {"2024-04-01"}, "to": {"2024-03-01"}},
	}
	for _, v := range cases {
		_, err := ParseQuery(v, time.UTC)
		assert.Error(t, err, v.Encode())
	}
}
