package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	var seen string
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))

	require.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, int64(1), m.GetMetrics().TotalRequests)
}

func TestMiddlewareHonoursInboundID(t *testing.T) {
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "bad id with spaces\n")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.NotEqual(t, "bad id with spaces\n", rec.Header().Get(HeaderRequestID))
}

func TestMiddlewareObservesStatus(t *testing.T) {
	var (
		status int
		ip     string
	)
	m := NewMiddleware(
		func(*http.Request) string { ip = "10.0.0.1"; return ip },
		func(_ *http.Request, s int, d time.Duration) {
			status = s
			assert.GreaterOrEqual(t, d, time.Duration(0))
		},
	)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "10.0.0.1", ip)
}
