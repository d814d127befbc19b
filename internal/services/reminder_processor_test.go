package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/memory"
	"fintrack/internal/settings"
)

func TestReminderProcessor(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, settings.SeedDefaults(ctx, store))
	pub := &fakeReminderPublisher{}
	p := NewReminderProcessor(store, pub, time.UTC, nil)

	evening := time.Date(2024, 3, 15, 20, 30, 0, 0, time.UTC)

	fired, err := p.Check(ctx, evening)
	require.NoError(t, err)
	assert.False(t, fired, "disabled by default")

	require.NoError(t, settings.Set(ctx, store, settings.KeyReminderEnabled, "true"))

	fired, err = p.Check(ctx, evening.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.False(t, fired, "before reminder time")

	fired, err = p.Check(ctx, evening)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, ReminderTitle, pub.sent[0].Title)

	fired, err = p.Check(ctx, evening.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, fired, "once per day")

	fired, err = p.Check(ctx, evening.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, fired)

	prefs, err := settings.Load(ctx, store)
	require.NoError(t, err)
	assert.True(t, evening.AddDate(0, 0, 1).Equal(prefs.ReminderLastFired))
}

func TestReminderProcessorPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, settings.Set(ctx, store, settings.KeyReminderEnabled, "true"))
	pub := &fakeReminderPublisher{err: errors.New("broker down")}
	p := NewReminderProcessor(store, pub, time.UTC, nil)

	now := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)
	_, err := p.Check(ctx, now)
	assert.Error(t, err)

	prefs, err := settings.Load(ctx, store)
	require.NoError(t, err)
	assert.True(t, prefs.ReminderLastFired.IsZero(), "not recorded when publishing failed")
}

func TestReminderProcessorNotInitialized(t *testing.T) {
	p := NewReminderProcessor(nil, nil, nil, nil)
	_, err := p.Check(context.Background(), time.Now())
	assert.Error(t, err)
}
