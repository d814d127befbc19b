package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/stats"
)

const opStats = "stats"

// parseStatsQuery reads from, to, currency, type and bucket.
func parseStatsQuery(q url.Values, loc *time.Location) (services.StatsQuery, error) {
	var (
		sq  services.StatsQuery
		err error
	)
	if sq.From, sq.To, err = parseRange(q, loc); err != nil {
		return sq, err
	}
	sq.Currency = strings.ToUpper(strings.TrimSpace(q.Get("currency")))
	if sq.Currency != "" {
		if err := core.ValidateCurrency(sq.Currency); err != nil {
			return sq, err
		}
	}
	if t := q.Get("type"); t != "" {
		if sq.Type, err = core.ParseCategoryType(t); err != nil {
			return sq, err
		}
	}
	if sq.Bucket, err = stats.ParseBucket(q.Get("bucket")); err != nil {
		return sq, err
	}
	return sq, nil
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	serveStats(s, w, r, s.stats.Summary)
}

func (s *Server) handleStatsCategories(w http.ResponseWriter, r *http.Request) {
	serveStats(s, w, r, s.stats.Categories)
}

func (s *Server) handleStatsTimeline(w http.ResponseWriter, r *http.Request) {
	serveStats(s, w, r, s.stats.Timeline)
}

func (s *Server) handleStatsTags(w http.ResponseWriter, r *http.Request) {
	serveStats(s, w, r, s.stats.Tags)
}

func serveStats[T any](s *Server, w http.ResponseWriter, r *http.Request, compute func(ctx context.Context, q services.StatsQuery) (T, error)) {
	q, err := parseStatsQuery(r.URL.Query(), s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, opStats, err)
		return
	}
	result, err := compute(r.Context(), q)
	if err != nil {
		writeError(r.Context(), w, opStats, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export and import

// handleExportJSON serves the full snapshot as a dated attachment.
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.ExportJSON(r.Context(), &buf); err != nil {
		writeError(r.Context(), w, applog.OpExport, err)
		return
	}
	name := fmt.Sprintf("fintrack-%s.json", time.Now().In(s.ledger.Location()).Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r.URL.Query(), s.ledger.Location())
	if err != nil {
		writeError(r.Context(), w, applog.OpExport, err)
		return
	}
	var buf bytes.Buffer
	if err := s.ledger.ExportCSV(r.Context(), &buf, from, to); err != nil {
		writeError(r.Context(), w, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type importResponse struct {
	Accounts     int `json:"accounts"`
	Categories   int `json:"categories"`
	Tags         int `json:"tags"`
	Transactions int `json:"transactions"`
	Transfers    int `json:"transfers"`
	Budgets      int `json:"budgets"`
}

// handleImportJSON restores a snapshot. The store must hold no user data.
func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.ImportJSON(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(r.Context(), w, applog.OpImport, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).InfoContext(r.Context(), "Snapshot imported",
		"accounts", len(snap.Accounts), "transactions", len(snap.Transactions))
	writeJSON(w, http.StatusCreated, importResponse{
		Accounts:     len(snap.Accounts),
		Categories:   len(snap.Categories),
		Tags:         len(snap.Tags),
		Transactions: len(snap.Transactions),
		Transfers:    len(snap.Transfers),
		Budgets:      len(snap.Budgets),
	})
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RecalculateBalances(r.Context()); err != nil {
		writeError(r.Context(), w, "recalculate", err)
		return
	}
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
