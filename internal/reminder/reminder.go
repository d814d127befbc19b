// Package reminder decides when the daily "log your spending" notification
// fires.
package reminder

import (
	"time"

	"fintrack/internal/settings"
)

// Schedule fires once per calendar day at a fixed local time of day.
type Schedule struct {
	At       settings.ClockTime
	Location *time.Location
}

// FromPreferences builds the schedule configured in prefs.
func FromPreferences(p settings.Preferences, loc *time.Location) Schedule {
	return Schedule{At: p.ReminderTime, Location: loc}
}

func (s Schedule) loc() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// fireTime is the fire instant on the calendar day of t.
func (s Schedule) fireTime(t time.Time) time.Time {
	y, m, d := t.In(s.loc()).Date()
	return time.Date(y, m, d, s.At.Hour, s.At.Minute, 0, 0, s.loc())
}

// Next returns the first fire time strictly after now.
func (s Schedule) Next(now time.Time) time.Time {
	ft := s.fireTime(now)
	if now.Before(ft) {
		return ft
	}
	y, m, d := now.In(s.loc()).Date()
	return time.Date(y, m, d+1, s.At.Hour, s.At.Minute, 0, 0, s.loc())
}

// IsDue reports whether the reminder should fire at now, given when it last
// fired. It fires at most once per calendar day and never before the time
// of day is reached.
func (s Schedule) IsDue(lastFired, now time.Time) bool {
	if now.Before(s.fireTime(now)) {
		return false
	}
	if lastFired.IsZero() {
		return true
	}
	return !sameDay(lastFired.In(s.loc()), now.In(s.loc()))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
