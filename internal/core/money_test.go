package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true},
		{"12.344", "12.34", true},
		{" 2.50 ", "2.50", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.out, got.StringFixed(2))
		})
	}
}

func TestParseSignedAmount(t *testing.T) {
	got, err := ParseSignedAmount("-12,5")
	require.NoError(t, err)
	assert.Equal(t, "-12.50", got.StringFixed(2))

	got, err = ParseSignedAmount("0")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseSignedAmount("--1")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.30 EUR", FormatAmount(decimal.RequireFromString("12.3"), "EUR"))
	assert.Equal(t, "-4.00", FormatAmount(decimal.NewFromInt(-4), ""))
}
