package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/settings"
)

func at(h, m int) Schedule {
	return Schedule{At: settings.ClockTime{Hour: h, Minute: m}, Location: time.UTC}
}

func ts(day, h, m int) time.Time {
	return time.Date(2024, time.March, day, h, m, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	s := at(20, 0)
	assert.Equal(t, ts(5, 20, 0), s.Next(ts(5, 8, 0)))
	assert.Equal(t, ts(6, 20, 0), s.Next(ts(5, 20, 0)))
	assert.Equal(t, ts(6, 20, 0), s.Next(ts(5, 23, 59)))
	assert.Equal(t, time.Date(2024, time.April, 1, 20, 0, 0, 0, time.UTC), s.Next(ts(31, 21, 0)))
}

func TestIsDue(t *testing.T) {
	s := at(20, 0)
	tests := []struct {
		name      string
		lastFired time.Time
		now       time.Time
		want      bool
	}{
		{"before time of day", time.Time{}, ts(5, 19, 59), false},
		{"never fired", time.Time{}, ts(5, 20, 0), true},
		{"fired yesterday", ts(4, 20, 1), ts(5, 20, 30), true},
		{"already fired today", ts(5, 20, 0), ts(5, 23, 0), false},
		{"fired yesterday but too early", ts(4, 20, 0), ts(5, 7, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsDue(tt.lastFired, tt.now))
		})
	}
}

func TestIsDueUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	s := Schedule{At: settings.ClockTime{Hour: 20}, Location: loc}

	// 19:30 UTC is 20:30 in Berlin in March (before DST starts).
	now := time.Date(2024, time.March, 5, 19, 30, 0, 0, time.UTC)
	assert.True(t, s.IsDue(time.Time{}, now))
	// Fired at 23:30 UTC on the 4th, which is already the 5th in Berlin.
	assert.False(t, s.IsDue(time.Date(2024, time.March, 4, 23, 30, 0, 0, time.UTC), now))
}

func TestFromPreferences(t *testing.T) {
	p := settings.Defaults()
	s := FromPreferences(p, time.UTC)
	assert.Equal(t, ts(5, 20, 0), s.Next(ts(5, 10, 0)))
}
