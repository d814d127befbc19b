package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestResolveColor(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"green", "#34C759", true},
		{"Blue", "#007AFF", true},
		{"", "#8E8E93", true},
		{"#a1b2c3", "#A1B2C3", true},
		{"a1b2c3", "#A1B2C3", true},
		{"#abc", "", false},
		{"chartreuse", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ResolveColor(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, core.ErrInvalidColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIconFor(t *testing.T) {
	assert.Equal(t, "cart", IconFor("cart"))
	assert.Equal(t, DefaultIcon, IconFor("spaceship"))
	assert.True(t, KnownIcon(DefaultIcon))
	assert.Contains(t, Icons(), "wallet.pass")
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()
	require.NotEmpty(t, cats)

	seen := map[core.CategoryType][]int{}
	for _, c := range cats {
		require.NoError(t, c.Validate(), c.Name)
		seen[c.Type] = append(seen[c.Type], c.Order)
	}
	for typ, orders := range seen {
		for i, o := range orders {
			assert.Equal(t, i, o, "order of %s categories", typ)
		}
	}
	assert.NotEmpty(t, seen[core.Spending])
	assert.NotEmpty(t, seen[core.Income])
	assert.Len(t, ColorNames(), 13)
}
