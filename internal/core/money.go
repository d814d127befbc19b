// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values with two fractional digits. Parsing accepts
// both dot and comma separators and rounds half away from zero.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for every amount.
const MoneyPlaces = 2

// ParseAmount converts a user supplied decimal string to a positive amount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseUnsigned(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseSignedAmount is like ParseAmount but allows zero and a leading
// minus sign. It is used for starting balances.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	d, err := parseUnsigned(strings.TrimPrefix(s, "-"))
	if err != nil {
		return decimal.Zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func parseUnsigned(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || s == "." || strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return RoundMoney(d), nil
}

// RoundMoney rounds to two places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatAmount renders an amount with two decimals followed by the
// currency code, e.g. "12.30 EUR".
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.StringFixed(MoneyPlaces)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
