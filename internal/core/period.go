package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Weekly  Period = "week"
	Monthly Period = "month"
	Yearly  Period = "year"
)

type Period string

func (p Period) Valid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Bounds returns the half-open interval [start, end) of the period that
// contains ref, in ref's location.
func (p Period) Bounds(ref time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	day := StartOfDay(ref)
	switch p {
	case Weekly:
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case Yearly:
		start := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(1, 0, 0)
	default:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(0, 1, 0)
	}
}

// Previous returns the start of the period immediately before the one
// starting at start.
func (p Period) Previous(start time.Time) time.Time {
	switch p {
	case Weekly:
		return start.AddDate(0, 0, -7)
	case Yearly:
		return start.AddDate(-1, 0, 0)
	default:
		return start.AddDate(0, -1, 0)
	}
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseWeekday accepts "monday" or "sunday".
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monday", "":
		return time.Monday, nil
	case "sunday":
		return time.Sunday, nil
	}
	return time.Monday, fmt.Errorf("invalid week start %q", s)
}
