package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentLedger})
	l.Info("Transaction created", FieldEntity, "transaction")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ledger", rec[FieldComponent])
	assert.Equal(t, "transaction", rec[FieldEntity])
	assert.Equal(t, "Transaction created", rec["msg"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf})
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestMiddlewareInjectsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf, Component: ComponentHTTP})

	h := Middleware(base, func(*http.Request) string { return "req_abc" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req_abc", rec[FieldRequestID])
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}

func TestLogErrorWritesFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), New(Config{Format: "json", Output: &buf}))
	LogError(ctx, "Import failed", errors.New("bad version"), ComponentLedger, OpImport, NewFields().WithEntity("snapshot", "-"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "bad version", rec[FieldError])
	assert.Equal(t, OpImport, rec[FieldOperation])
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
}
