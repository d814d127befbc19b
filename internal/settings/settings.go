// Package settings holds the typed view over the key-value preferences
// stored in the settings table.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

const (
	KeyDefaultCurrency   = "default_currency"
	KeyWeekStart         = "week_start"
	KeyReminderEnabled   = "reminder_enabled"
	KeyReminderTime      = "reminder_time"
	KeyReminderLastFired = "reminder_last_fired"
)

// ErrUnknownKey is returned for keys outside the known preference set.
var ErrUnknownKey = errors.New("unknown setting")

// Keys lists every accepted preference key.
var Keys = []string{
	KeyDefaultCurrency,
	KeyWeekStart,
	KeyReminderEnabled,
	KeyReminderTime,
	KeyReminderLastFired,
}

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime accepts HH:MM in 24 hour format.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: time of day %q, want HH:MM", core.ErrInvalidInput, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Preferences is the decoded preference set.
type Preferences struct {
	DefaultCurrency   string
	WeekStart         time.Weekday
	ReminderEnabled   bool
	ReminderTime      ClockTime
	ReminderLastFired time.Time
}

// Defaults returns the preferences of a fresh install.
func Defaults() Preferences {
	return Preferences{
		DefaultCurrency: "EUR",
		WeekStart:       time.Monday,
		ReminderEnabled: false,
		ReminderTime:    ClockTime{Hour: 20},
	}
}

// Validate checks a single key/value pair and returns the normalized value.
func Validate(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyDefaultCurrency:
		value = strings.ToUpper(value)
		if err := core.ValidateCurrency(value); err != nil {
			return "", err
		}
		return value, nil
	case KeyWeekStart:
		value = strings.ToLower(value)
		if value != "monday" && value != "sunday" {
			return "", fmt.Errorf("%w: week start %q, want monday or sunday", core.ErrInvalidInput, value)
		}
		return value, nil
	case KeyReminderEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%w: boolean %q", core.ErrInvalidInput, value)
		}
		return strconv.FormatBool(b), nil
	case KeyReminderTime:
		c, err := ParseClockTime(value)
		if err != nil {
			return "", err
		}
		return c.String(), nil
	case KeyReminderLastFired:
		if value == "" {
			return "", nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return "", fmt.Errorf("%w: timestamp %q, want RFC 3339", core.ErrInvalidInput, value)
		}
		return t.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Decode builds Preferences from raw values, falling back to defaults for
// missing keys. Unknown keys are ignored.
func Decode(raw map[string]string) (Preferences, error) {
	p := Defaults()
	for key, value := range raw {
		if value == "" {
			continue
		}
		v, err := Validate(key, value)
		if errors.Is(err, ErrUnknownKey) {
			continue
		}
		if err != nil {
			return p, fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case KeyDefaultCurrency:
			p.DefaultCurrency = v
		case KeyWeekStart:
			p.WeekStart, _ = core.ParseWeekday(v)
		case KeyReminderEnabled:
			p.ReminderEnabled = v == "true"
		case KeyReminderTime:
			p.ReminderTime, _ = ParseClockTime(v)
		case KeyReminderLastFired:
			p.ReminderLastFired, _ = time.Parse(time.RFC3339, v)
		}
	}
	return p, nil
}

// Encode is the inverse of Decode.
func (p Preferences) Encode() map[string]string {
	week := "monday"
	if p.WeekStart == time.Sunday {
		week = "sunday"
	}
	out := map[string]string{
		KeyDefaultCurrency: p.DefaultCurrency,
		KeyWeekStart:       week,
		KeyReminderEnabled: strconv.FormatBool(p.ReminderEnabled),
		KeyReminderTime:    p.ReminderTime.String(),
	}
	if !p.ReminderLastFired.IsZero() {
		out[KeyReminderLastFired] = p.ReminderLastFired.Format(time.RFC3339)
	} else {
		out[KeyReminderLastFired] = ""
	}
	return out
}

// Load reads and decodes all preferences from store.
func Load(ctx context.Context, store ports.SettingsStore) (Preferences, error) {
	raw, err := store.AllSettings(ctx)
	if err != nil {
		return Preferences{}, fmt.Errorf("load settings: %w", err)
	}
	return Decode(raw)
}

// Set validates and stores one preference.
func Set(ctx context.Context, store ports.SettingsStore, key, value string) error {
	v, err := Validate(key, value)
	if err != nil {
		return err
	}
	if err := store.SetSetting(ctx, key, v); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// SeedDefaults writes the default value of every key that is not stored yet.
func SeedDefaults(ctx context.Context, store ports.SettingsStore) error {
	for key, value := range Defaults().Encode() {
		if value == "" {
			continue
		}
		_, ok, err := store.GetSetting(ctx, key)
		if err != nil {
			return fmt.Errorf("read setting %s: %w", key, err)
		}
		if ok {
			continue
		}
		if err := store.SetSetting(ctx, key, value); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}
