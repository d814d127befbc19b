// Package filter narrows and orders transaction lists for the search and
// list views. Everything here is pure: callers load the inputs.
package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	MatchAny TagMode = "any"
	MatchAll TagMode = "all"
)

const (
	DateDesc  SortOrder = "date_desc"
	DateAsc   SortOrder = "date_asc"
	ValueDesc SortOrder = "value_desc"
	ValueAsc  SortOrder = "value_asc"
)

type (
	TagMode   string
	SortOrder string

	// Criteria describes a transaction search. Zero fields do not filter.
	// From is inclusive and To exclusive.
	Criteria struct {
		From        time.Time
		To          time.Time
		AccountIDs  []uuid.UUID
		CategoryIDs []uuid.UUID
		TagIDs      []uuid.UUID
		TagMode     TagMode
		Type        core.CategoryType
		MinValue    decimal.NullDecimal
		MaxValue    decimal.NullDecimal
		Query       string
		Fuzzy       bool
		Sort        SortOrder
	}

	// Lookup resolves category and tag names for text search.
	Lookup struct {
		Categories map[uuid.UUID]core.Category
		Tags       map[uuid.UUID]core.Tag
	}
)

func NewLookup(categories []core.Category, tags []core.Tag) Lookup {
	l := Lookup{
		Categories: make(map[uuid.UUID]core.Category, len(categories)),
		Tags:       make(map[uuid.UUID]core.Tag, len(tags)),
	}
	for _, c := range categories {
		l.Categories[c.ID] = c
	}
	for _, t := range tags {
		l.Tags[t.ID] = t
	}
	return l
}

// Validate rejects inconsistent criteria.
func (c Criteria) Validate() error {
	if !c.From.IsZero() && !c.To.IsZero() && !c.From.Before(c.To) {
		return fmt.Errorf("%w: from must be before to", core.ErrInvalidDate)
	}
	if c.Type != "" && !c.Type.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidType, c.Type)
	}
	switch c.TagMode {
	case "", MatchAny, MatchAll:
	default:
		return fmt.Errorf("%w: tag mode %q", core.ErrInvalidInput, c.TagMode)
	}
	switch c.Sort {
	case "", DateDesc, DateAsc, ValueDesc, ValueAsc:
	default:
		return fmt.Errorf("%w: sort %q", core.ErrInvalidInput, c.Sort)
	}
	if c.MinValue.Valid && c.MaxValue.Valid && c.MinValue.Decimal.GreaterThan(c.MaxValue.Decimal) {
		return fmt.Errorf("%w: min exceeds max", core.ErrInvalidAmount)
	}
	return nil
}

// Apply returns the matching transactions in the requested order. The input
// slice is not modified and ties keep their input order.
func (c Criteria) Apply(txs []core.Transaction, lookup Lookup) []core.Transaction {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if c.Match(t) && c.matchText(t, query, lookup) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, c.compare)
	return out
}

// Match checks every criterion except the text query.
func (c Criteria) Match(t core.Transaction) bool {
	if !c.From.IsZero() && t.Date.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && !t.Date.Before(c.To) {
		return false
	}
	if c.Type != "" && t.Type != c.Type {
		return false
	}
	if len(c.AccountIDs) > 0 && !slices.Contains(c.AccountIDs, t.AccountID) {
		return false
	}
	if len(c.CategoryIDs) > 0 && !slices.Contains(c.CategoryIDs, t.CategoryID) {
		return false
	}
	if c.MinValue.Valid && t.Value.LessThan(c.MinValue.Decimal) {
		return false
	}
	if c.MaxValue.Valid && t.Value.GreaterThan(c.MaxValue.Decimal) {
		return false
	}
	return c.matchTags(t)
}

func (c Criteria) matchTags(t core.Transaction) bool {
	if len(c.TagIDs) == 0 {
		return true
	}
	if c.TagMode == MatchAll {
		for _, id := range c.TagIDs {
			if !t.HasTag(id) {
				return false
			}
		}
		return true
	}
	for _, id := range c.TagIDs {
		if t.HasTag(id) {
			return true
		}
	}
	return false
}

func (c Criteria) matchText(t core.Transaction, query string, lookup Lookup) bool {
	if query == "" {
		return true
	}
	fields := make([]string, 0, 2+len(t.TagIDs))
	fields = append(fields, strings.ToLower(t.Comment))
	if cat, ok := lookup.Categories[t.CategoryID]; ok {
		fields = append(fields, strings.ToLower(cat.Name))
	}
	for _, id := range t.TagIDs {
		if tag, ok := lookup.Tags[id]; ok {
			fields = append(fields, strings.ToLower(tag.Name))
		}
	}
	for _, f := range fields {
		if strings.Contains(f, query) {
			return true
		}
	}
	if !c.Fuzzy {
		return false
	}

	var words []string
	for _, f := range fields {
		words = append(words, splitWords(f)...)
	}
	// Every query word needs a close match.
	for _, q := range splitWords(query) {
		if !slices.ContainsFunc(words, func(w string) bool { return fuzzyMatch(q, w) }) {
			return false
		}
	}
	return true
}

// MaxDistance is the Levenshtein tolerance for a query word.
func MaxDistance(word string) int {
	if len([]rune(word)) <= 4 {
		return 1
	}
	return 2
}

func fuzzyMatch(query, word string) bool {
	if strings.Contains(word, query) {
		return true
	}
	return levenshtein.ComputeDistance(query, word) <= MaxDistance(query)
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (c Criteria) compare(a, b core.Transaction) int {
	switch c.Sort {
	case DateAsc:
		return a.Date.Compare(b.Date)
	case ValueDesc:
		return b.Value.Cmp(a.Value)
	case ValueAsc:
		return a.Value.Cmp(b.Value)
	default:
		return b.Date.Compare(a.Date)
	}
}
