package google

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

func mirrorRow(date string, created time.Time, value string) ports.MirrorRow {
	d, _ := time.Parse("2006-01-02", date)
	return ports.MirrorRow{
		Transaction: core.Transaction{
			ID:        uuid.New(),
			Type:      core.Spending,
			Comment:   "lunch",
			Value:     decimal.RequireFromString(value),
			Date:      d,
			CreatedAt: created,
		},
		Account:  "Wallet",
		Currency: "EUR",
		Category: "Food",
		Tags:     []string{"work", "food"},
	}
}

func TestEncodeRow(t *testing.T) {
	r := mirrorRow("2024-03-01", time.Now(), "12.5")
	got := encodeRow(r)
	require.Len(t, got, len(header))
	assert.Equal(t, r.Transaction.ID.String(), got[0])
	assert.Equal(t, "2024-03-01", got[1])
	assert.Equal(t, "spending", got[2])
	assert.Equal(t, "food, work", got[5])
	assert.Equal(t, "12.50", got[6])
	assert.Equal(t, "EUR", got[7])
	assert.Equal(t, "lunch", got[8])
	// the caller's slice is left untouched
	assert.Equal(t, []string{"work", "food"}, r.Tags)
}

func TestEncodeRowsOrder(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	late := mirrorRow("2024-03-05", base, "1")
	earlyB := mirrorRow("2024-03-01", base.Add(time.Minute), "2")
	earlyA := mirrorRow("2024-03-01", base, "3")

	out := encodeRows([]ports.MirrorRow{late, earlyB, earlyA})
	require.Len(t, out, 4)
	assert.Equal(t, "ID", out[0][0])
	assert.Equal(t, earlyA.Transaction.ID.String(), out[1][0])
	assert.Equal(t, earlyB.Transaction.ID.String(), out[2][0])
	assert.Equal(t, late.Transaction.ID.String(), out[3][0])
}

func TestEncodeRowsEmpty(t *testing.T) {
	out := encodeRows(nil)
	require.Len(t, out, 1)
	assert.Equal(t, headerRow(), out[0])
}

func TestLocateRow(t *testing.T) {
	id := uuid.New().String()
	values := [][]any{{"ID"}, {}, {uuid.New().String()}, {" " + id + " "}}
	assert.Equal(t, 4, locateRow(values, id))
	assert.Equal(t, 0, locateRow(values, uuid.New().String()))
	assert.Equal(t, 0, locateRow(nil, id))
}

func TestNewRequiresConfiguration(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"no spreadsheet", config.Config{}, "missing GOOGLE_SPREADSHEET_ID"},
		{"no client", config.Config{GoogleSpreadsheetID: "sheet"}, "oauth client"},
		{
			"no token",
			config.Config{GoogleSpreadsheetID: "sheet", GoogleOAuthClientJSON: "{}"},
			"oauth token",
		},
		{
			"bad client json",
			config.Config{GoogleSpreadsheetID: "sheet", GoogleOAuthClientJSON: "invalid", GoogleOAuthTokenJSON: `{"access_token":"x"}`},
			"oauth config",
		},
		{
			"missing client file",
			config.Config{GoogleSpreadsheetID: "sheet", GoogleOAuthClientFile: "/nonexistent/client.json"},
			"oauth client",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, &tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
