package google

import (
	"fmt"
	"sort"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// Column layout of the mirror sheet.
var header = []string{"ID", "Date", "Type", "Account", "Category", "Tags", "Value", "Currency", "Comment"}

const lastColumn = "I"

func headerRow() []any {
	out := make([]any, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func encodeRow(r ports.MirrorRow) []any {
	t := r.Transaction
	tags := append([]string(nil), r.Tags...)
	sort.Strings(tags)
	return []any{
		t.ID.String(),
		t.Date.Format("2006-01-02"),
		string(t.Type),
		r.Account,
		r.Category,
		strings.Join(tags, ", "),
		t.Value.StringFixed(core.MoneyPlaces),
		r.Currency,
		t.Comment,
	}
}

// encodeRows renders the header plus rows ordered by date, then creation time.
func encodeRows(rows []ports.MirrorRow) [][]any {
	sorted := append([]ports.MirrorRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Transaction, sorted[j].Transaction
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	out := make([][]any, 0, len(sorted)+1)
	out = append(out, headerRow())
	for _, r := range sorted {
		out = append(out, encodeRow(r))
	}
	return out
}

// locateRow returns the 1-based sheet row whose first cell equals id, or 0.
func locateRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(fmt.Sprint(row[0])), id) {
			return i + 1
		}
	}
	return 0
}
