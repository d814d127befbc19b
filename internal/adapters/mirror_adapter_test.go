package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/ports"
)

type flakyMirror struct {
	err   error
	calls int
}

func (f *flakyMirror) UpsertTransaction(context.Context, ports.MirrorRow) error {
	f.calls++
	return f.err
}

func (f *flakyMirror) RemoveTransaction(context.Context, uuid.UUID) error {
	f.calls++
	return f.err
}

func (f *flakyMirror) ReplaceAll(context.Context, []ports.MirrorRow) error {
	f.calls++
	return f.err
}

func TestGuardedMirrorPassesThrough(t *testing.T) {
	inner := &flakyMirror{}
	g := NewGuardedMirror(inner, nil)
	ctx := context.Background()

	require.NoError(t, g.UpsertTransaction(ctx, ports.MirrorRow{}))
	require.NoError(t, g.RemoveTransaction(ctx, uuid.New()))
	require.NoError(t, g.ReplaceAll(ctx, nil))
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuardedMirrorOpensAfterFailures(t *testing.T) {
	down := errors.New("quota exceeded")
	inner := &flakyMirror{err: down}
	g := NewGuardedMirror(inner, nil)
	ctx := context.Background()

	for range mirrorMaxFailures {
		assert.ErrorIs(t, g.RemoveTransaction(ctx, uuid.New()), down)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	err := g.ReplaceAll(ctx, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, mirrorMaxFailures, inner.calls, "open breaker does not reach the mirror")
}
