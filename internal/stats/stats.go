// Package stats computes the summary, pie and bar series shown on the
// statistics screens. Inputs are plain transaction slices.
package stats

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
	BucketYear  Bucket = "year"
)

// MaxBars caps the number of timeline buckets per request.
const MaxBars = 1000

var hundred = decimal.NewFromInt(100)

type (
	Bucket string

	Summary struct {
		Income   decimal.Decimal `json:"income"`
		Spending decimal.Decimal `json:"spending"`
		Net      decimal.Decimal `json:"net"`
		Count    int             `json:"count"`
	}

	// CategorySlice is one slice of a pie chart. Share is a percentage.
	CategorySlice struct {
		CategoryID uuid.UUID       `json:"category_id"`
		Name       string          `json:"name"`
		Icon       string          `json:"icon"`
		Color      string          `json:"color"`
		Total      decimal.Decimal `json:"total"`
		Count      int             `json:"count"`
		Share      decimal.Decimal `json:"share"`
	}

	// Bar is one timeline bucket covering [Start, End).
	Bar struct {
		Start    time.Time       `json:"start"`
		End      time.Time       `json:"end"`
		Income   decimal.Decimal `json:"income"`
		Spending decimal.Decimal `json:"spending"`
		Net      decimal.Decimal `json:"net"`
	}

	TagTotal struct {
		TagID    uuid.UUID       `json:"tag_id"`
		Name     string          `json:"name"`
		Color    string          `json:"color"`
		Income   decimal.Decimal `json:"income"`
		Spending decimal.Decimal `json:"spending"`
		Count    int             `json:"count"`
	}
)

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BucketDay, BucketWeek, BucketMonth, BucketYear:
		return b, nil
	case "":
		return BucketMonth, nil
	}
	return "", fmt.Errorf("%w: bucket %q", core.ErrInvalidInput, s)
}

func Summarize(txs []core.Transaction) Summary {
	s := Summary{Income: decimal.Zero, Spending: decimal.Zero}
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			s.Income = s.Income.Add(t.Value)
		case core.Spending:
			s.Spending = s.Spending.Add(t.Value)
		default:
			continue
		}
		s.Count++
	}
	s.Net = s.Income.Sub(s.Spending)
	return s
}

// ByCategory groups transactions of one type by category. Slices are
// ordered by total desc, then category display order. Shares are rounded
// to two places and the largest slice absorbs the rounding error so the
// shares add up to exactly 100.
func ByCategory(txs []core.Transaction, typ core.CategoryType, categories []core.Category) []CategorySlice {
	byID := make(map[uuid.UUID]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	index := make(map[uuid.UUID]int)
	var out []CategorySlice
	total := decimal.Zero
	for _, t := range txs {
		if t.Type != typ {
			continue
		}
		i, ok := index[t.CategoryID]
		if !ok {
			c := byID[t.CategoryID]
			i = len(out)
			index[t.CategoryID] = i
			out = append(out, CategorySlice{
				CategoryID: t.CategoryID,
				Name:       c.Name,
				Icon:       c.Icon,
				Color:      c.Color,
				Total:      decimal.Zero,
			})
		}
		out[i].Total = out[i].Total.Add(t.Value)
		out[i].Count++
		total = total.Add(t.Value)
	}
	if len(out) == 0 {
		return []CategorySlice{}
	}

	slices.SortStableFunc(out, func(a, b CategorySlice) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(byID[a.CategoryID].Order, byID[b.CategoryID].Order); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	sum := decimal.Zero
	for i := range out {
		out[i].Share = out[i].Total.Mul(hundred).Div(total).Round(2)
		sum = sum.Add(out[i].Share)
	}
	out[0].Share = out[0].Share.Add(hundred.Sub(sum))
	return out
}

// BucketStart returns the start of the bucket containing t.
func BucketStart(b Bucket, t time.Time, weekStart time.Weekday) time.Time {
	switch b {
	case BucketDay:
		return core.StartOfDay(t)
	case BucketWeek:
		start, _ := core.Weekly.Bounds(t, weekStart)
		return start
	case BucketYear:
		start, _ := core.Yearly.Bounds(t, weekStart)
		return start
	default:
		start, _ := core.Monthly.Bounds(t, weekStart)
		return start
	}
}

func nextBucket(b Bucket, start time.Time) time.Time {
	switch b {
	case BucketDay:
		return start.AddDate(0, 0, 1)
	case BucketWeek:
		return start.AddDate(0, 0, 7)
	case BucketYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// Timeline returns one bar per bucket from the bucket containing from up
// to to (exclusive), including empty buckets. Transactions outside the
// range are ignored.
func Timeline(txs []core.Transaction, b Bucket, from, to time.Time, weekStart time.Weekday) ([]Bar, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", core.ErrInvalidDate)
	}
	var bars []Bar
	for start := BucketStart(b, from, weekStart); start.Before(to); start = nextBucket(b, start) {
		if len(bars) == MaxBars {
			return nil, fmt.Errorf("%w: range too large, more than %d %s buckets", core.ErrInvalidInput, MaxBars, b)
		}
		bars = append(bars, Bar{
			Start:    start,
			End:      nextBucket(b, start),
			Income:   decimal.Zero,
			Spending: decimal.Zero,
		})
	}

	for _, t := range txs {
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		i, ok := slices.BinarySearchFunc(bars, t.Date, func(bar Bar, d time.Time) int {
			if d.Before(bar.Start) {
				return 1
			}
			if !d.Before(bar.End) {
				return -1
			}
			return 0
		})
		if !ok {
			continue
		}
		switch t.Type {
		case core.Income:
			bars[i].Income = bars[i].Income.Add(t.Value)
		case core.Spending:
			bars[i].Spending = bars[i].Spending.Add(t.Value)
		}
	}
	for i := range bars {
		bars[i].Net = bars[i].Income.Sub(bars[i].Spending)
	}
	return bars, nil
}

// ByTag totals transactions per tag. A transaction with several tags
// counts once for each of them; untagged transactions are skipped.
func ByTag(txs []core.Transaction, tags []core.Tag) []TagTotal {
	byID := make(map[uuid.UUID]core.Tag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}

	index := make(map[uuid.UUID]int)
	out := []TagTotal{}
	for _, t := range txs {
		for _, id := range t.TagIDs {
			i, ok := index[id]
			if !ok {
				tag := byID[id]
				i = len(out)
				index[id] = i
				out = append(out, TagTotal{TagID: id, Name: tag.Name, Color: tag.Color, Income: decimal.Zero, Spending: decimal.Zero})
			}
			switch t.Type {
			case core.Income:
				out[i].Income = out[i].Income.Add(t.Value)
			case core.Spending:
				out[i].Spending = out[i].Spending.Add(t.Value)
			}
			out[i].Count++
		}
	}

	slices.SortStableFunc(out, func(a, b TagTotal) int {
		if c := b.Spending.Add(b.Income).Cmp(a.Spending.Add(a.Income)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
