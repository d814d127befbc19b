package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, requests int, window time.Duration) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(Config{Requests: requests, Window: window})
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl.now = c.now
	return rl, c
}

func TestAllowWithinWindow(t *testing.T) {
	rl, c := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are counted separately")

	c.advance(30 * time.Second)
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, 30*time.Second, rl.RetryAfter("10.0.0.1"))

	c.advance(30 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "new window")
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, c := newTestLimiter(t, 5, time.Minute)
	rl.Allow("a")
	c.advance(45 * time.Second)
	rl.Allow("b")
	c.advance(20 * time.Second)

	rl.cleanupStaleEntries()
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestDefaultsApplied(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	assert.Equal(t, 120, rl.requests)
	assert.Equal(t, time.Minute, rl.window)
	rl.Stop()
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	h := rl.Middleware(func(*http.Request) string { return "k" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
