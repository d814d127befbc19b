package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DateLayout is the calendar date format accepted in query strings.
const DateLayout = "2006-01-02"

// ParseQuery builds Criteria from URL query parameters:
//
//	from, to        YYYY-MM-DD, to is exclusive
//	account         repeated or comma separated ids
//	category        repeated or comma separated ids
//	tag             repeated or comma separated ids
//	tag_mode        any | all
//	type            spending | income
//	min, max        amounts
//	q               text query
//	fuzzy           boolean
//	sort            date_desc | date_asc | value_desc | value_asc
//
// Dates are interpreted in loc.
func ParseQuery(v url.Values, loc *time.Location) (Criteria, error) {
	var c Criteria
	var err error

	if c.From, err = parseDate(v.Get("from"), loc); err != nil {
		return c, fmt.Errorf("from: %w", err)
	}
	if c.To, err = parseDate(v.Get("to"), loc); err != nil {
		return c, fmt.Errorf("to: %w", err)
	}
	if c.AccountIDs, err = parseIDs(v["account"]); err != nil {
		return c, fmt.Errorf("account: %w", err)
	}
	if c.CategoryIDs, err = parseIDs(v["category"]); err != nil {
		return c, fmt.Errorf("category: %w", err)
	}
	if c.TagIDs, err = parseIDs(v["tag"]); err != nil {
		return c, fmt.Errorf("tag: %w", err)
	}
	c.TagMode = TagMode(strings.ToLower(v.Get("tag_mode")))
	if s := v.Get("type"); s != "" {
		if c.Type, err = core.ParseCategoryType(s); err != nil {
			return c, err
		}
	}
	if c.MinValue, err = parseOptionalAmount(v.Get("min")); err != nil {
		return c, fmt.Errorf("min: %w", err)
	}
	if c.MaxValue, err = parseOptionalAmount(v.Get("max")); err != nil {
		return c, fmt.Errorf("max: %w", err)
	}
	c.Query = v.Get("q")
	if s := v.Get("fuzzy"); s != "" {
		if c.Fuzzy, err = strconv.ParseBool(s); err != nil {
			return c, fmt.Errorf("%w: fuzzy must be a boolean, got %q", core.ErrInvalidInput, s)
		}
	}
	c.Sort = SortOrder(strings.ToLower(v.Get("sort")))

	return c, c.Validate()
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return t, nil
}

func parseIDs(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("%w: id %q", core.ErrInvalidInput, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseOptionalAmount(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := core.ParseSignedAmount(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
