// Package google mirrors the transaction list into a Google Sheets tab.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes transactions to a single sheet, one row per transaction,
// keyed by the id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu      sync.Mutex
	sheetID *int64
}

var _ ports.TransactionMirror = (*Client)(nil)

// New builds a client from the OAuth client and token configured in cfg.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	svc, err := newSheetsService(ctx, clientJSON, tokenJSON)
	if err != nil {
		return nil, err
	}
	sheet := strings.TrimSpace(cfg.GoogleSheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	return &Client{svc: svc, spreadsheetID: cfg.GoogleSpreadsheetID, sheet: sheet}, nil
}

func readCredential(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if file == "" {
		return nil, errors.New("neither inline JSON nor file configured")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return b, nil
}

func newSheetsService(ctx context.Context, clientJSON, tokenJSON []byte) (*gsheet.Service, error) {
	oauthCfg, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	// The oauth2 transport picks the pooled client up from the context.
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauthCfg.Client(base, &tok)

	svc, err := gsheet.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "token_valid", tok.Valid())
	return svc, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// UpsertTransaction rewrites the row holding the transaction, or appends one.
func (c *Client) UpsertTransaction(ctx context.Context, row ports.MirrorRow) error {
	values, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	id := row.Transaction.ID.String()
	if n := locateRow(values, id); n > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastColumn, n)
		vr := &gsheet.ValueRange{Values: [][]any{encodeRow(row)}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rows := [][]any{encodeRow(row)}
	if len(values) == 0 {
		rows = append([][]any{headerRow()}, rows...)
	}
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	return nil
}

// RemoveTransaction deletes the row holding id. A missing row is not an error.
func (c *Client) RemoveTransaction(ctx context.Context, id uuid.UUID) error {
	values, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	n := locateRow(values, id.String())
	if n == 0 {
		return nil
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(n - 1),
			EndIndex:   int64(n),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", n, err)
	}
	return nil
}

// ReplaceAll clears the sheet and writes the header followed by rows.
func (c *Client) ReplaceAll(ctx context.Context, rows []ports.MirrorRow) error {
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	values := encodeRows(rows)
	start := fmt.Sprintf("%s!A1", c.sheet)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", c.sheet, err)
	}
	slog.InfoContext(ctx, "Mirror sheet rewritten", "sheet", c.sheet, "rows", len(rows))
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheet)
}
