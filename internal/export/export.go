// Package export writes the full ledger as JSON, transactions as CSV, and
// restores JSON snapshots into an empty store.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/settings"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"date", "type", "account", "category", "tags", "value", "currency", "comment"}

// Snapshot loads the whole object graph concurrently.
func Snapshot(ctx context.Context, store ports.Store, now time.Time) (core.Snapshot, error) {
	snap := core.Snapshot{Version: core.SnapshotVersion, ExportedAt: now.UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Accounts, err = store.ListAccounts(ctx)
		return wrap("list accounts", err)
	})
	g.Go(func() (err error) {
		snap.Categories, err = store.ListCategories(ctx, "")
		return wrap("list categories", err)
	})
	g.Go(func() (err error) {
		snap.Tags, err = store.ListTags(ctx)
		return wrap("list tags", err)
	})
	g.Go(func() (err error) {
		snap.Transactions, err = store.ListTransactions(ctx, core.TransactionQuery{})
		return wrap("list transactions", err)
	})
	g.Go(func() (err error) {
		snap.Transfers, err = store.ListTransfers(ctx, core.TransactionQuery{})
		return wrap("list transfers", err)
	})
	g.Go(func() (err error) {
		snap.Budgets, err = store.ListBudgets(ctx)
		return wrap("list budgets", err)
	})
	g.Go(func() (err error) {
		snap.Settings, err = store.AllSettings(ctx)
		return wrap("list settings", err)
	})
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

func wrap(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WriteJSON encodes snap as indented JSON.
func WriteJSON(w io.Writer, snap core.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ErrInvalidSnapshot wraps every decode or validation failure of an
// imported snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ReadJSON decodes and validates a snapshot. Unknown fields are rejected.
func ReadJSON(r io.Reader) (core.Snapshot, error) {
	var snap core.Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: decode: %w", ErrInvalidSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	prefs, err := normalizeSettings(snap.Settings)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	snap.Settings = prefs
	return snap, nil
}

// Import validates snap and restores it into store, which must be empty.
// Preferences are stored in normalized form; unknown keys or invalid values
// reject the whole snapshot.
func Import(ctx context.Context, store ports.Store, snap core.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	prefs, err := normalizeSettings(snap.Settings)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	snap.Settings = prefs
	if err := store.Import(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

func normalizeSettings(raw map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		v, err := settings.Validate(key, value)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}
		if v != "" {
			out[key] = v
		}
	}
	return out, nil
}

// Names resolves references for CSV rows.
type Names struct {
	Accounts   map[uuid.UUID]core.BalanceAccount
	Categories map[uuid.UUID]core.Category
	Tags       map[uuid.UUID]core.Tag
}

func NewNames(accounts []core.BalanceAccount, categories []core.Category, tags []core.Tag) Names {
	n := Names{
		Accounts:   make(map[uuid.UUID]core.BalanceAccount, len(accounts)),
		Categories: make(map[uuid.UUID]core.Category, len(categories)),
		Tags:       make(map[uuid.UUID]core.Tag, len(tags)),
	}
	for _, a := range accounts {
		n.Accounts[a.ID] = a
	}
	for _, c := range categories {
		n.Categories[c.ID] = c
	}
	for _, t := range tags {
		n.Tags[t.ID] = t
	}
	return n
}

// TagNames returns the names of t's tags in store order (by name), skipping unknown
// ids.
func (n Names) TagNames(t core.Transaction) []string {
	out := make([]string, 0, len(t.TagIDs))
	for _, id := range t.TagIDs {
		if tag, ok := n.Tags[id]; ok {
			out = append(out, tag.Name)
		}
	}
	return out
}

// WriteCSV writes txs sorted by date then creation time. Dates are
// rendered in loc as YYYY-MM-DD.
func WriteCSV(w io.Writer, txs []core.Transaction, names Names, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b core.Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range sorted {
		acc := names.Accounts[t.AccountID]
		record := []string{
			t.Date.In(loc).Format("2006-01-02"),
			string(t.Type),
			acc.Name,
			names.Categories[t.CategoryID].Name,
			strings.Join(names.TagNames(t), ";"),
			t.Value.StringFixed(core.MoneyPlaces),
			acc.Currency,
			t.Comment,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// TransactionsCSV loads the transactions in [from, to) together with the
// names they reference and writes them as CSV.
func TransactionsCSV(ctx context.Context, store ports.Store, w io.Writer, from, to time.Time, loc *time.Location) error {
	var (
		txs        []core.Transaction
		accounts   []core.BalanceAccount
		categories []core.Category
		tags       []core.Tag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = store.ListTransactions(gctx, core.TransactionQuery{From: from, To: to})
		return wrap("list transactions", err)
	})
	g.Go(func() (err error) {
		accounts, err = store.ListAccounts(gctx)
		return wrap("list accounts", err)
	})
	g.Go(func() (err error) {
		categories, err = store.ListCategories(gctx, "")
		return wrap("list categories", err)
	})
	g.Go(func() (err error) {
		tags, err = store.ListTags(gctx)
		return wrap("list tags", err)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return WriteCSV(w, txs, NewNames(accounts, categories, tags), loc)
}
