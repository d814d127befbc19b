package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Reassign DeleteMode = "reassign"
	Cascade  DeleteMode = "cascade"
	Detach   DeleteMode = "detach"
)

// SnapshotVersion is the current JSON export format version.
const SnapshotVersion = 1

type (
	DeleteMode string

	// DeletePolicy says what happens to the dependents of a deleted account,
	// category or tag. Target is only used with Reassign.
	DeletePolicy struct {
		Mode   DeleteMode `json:"mode"`
		Target uuid.UUID  `json:"target,omitempty"`
	}

	// TransactionQuery narrows storage listings. Zero values disable the
	// corresponding filter; To is exclusive.
	TransactionQuery struct {
		From      time.Time
		To        time.Time
		AccountID uuid.UUID
	}

	// Snapshot is the full object graph, as exported to and imported from JSON.
	Snapshot struct {
		Version      int               `json:"version"`
		ExportedAt   time.Time         `json:"exported_at"`
		Accounts     []BalanceAccount  `json:"accounts"`
		Categories   []Category        `json:"categories"`
		Tags         []Tag             `json:"tags"`
		Transactions []Transaction     `json:"transactions"`
		Transfers    []Transfer        `json:"transfers"`
		Budgets      []Budget          `json:"budgets"`
		Settings     map[string]string `json:"settings"`
	}
)

// Validate checks the policy for deleting subject. Detach is only
// meaningful for tags.
func (p DeletePolicy) Validate(subject uuid.UUID, allowDetach bool) error {
	switch p.Mode {
	case Cascade:
		return nil
	case Detach:
		if !allowDetach {
			return fmt.Errorf("%w: detach is only supported for tags", ErrInvalidPolicy)
		}
		return nil
	case Reassign:
		if p.Target == uuid.Nil {
			return fmt.Errorf("%w: reassign requires a target", ErrInvalidPolicy)
		}
		if p.Target == subject {
			return fmt.Errorf("%w: cannot reassign to the deleted entity", ErrInvalidPolicy)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, p.Mode)
}

// Contains reports whether a date falls inside the query range.
func (q TransactionQuery) Contains(t time.Time) bool {
	if !q.From.IsZero() && t.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !t.Before(q.To) {
		return false
	}
	return true
}

// ComputeBalances derives every account balance from its starting balance,
// its transactions and the transfers touching it.
func ComputeBalances(accounts []BalanceAccount, txs []Transaction, transfers []Transfer) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a.StartingBalance
	}
	for _, t := range txs {
		if b, ok := out[t.AccountID]; ok {
			out[t.AccountID] = b.Add(t.SignedValue())
		}
	}
	for _, tr := range transfers {
		if b, ok := out[tr.FromAccountID]; ok {
			out[tr.FromAccountID] = b.Sub(tr.Value)
		}
		if b, ok := out[tr.ToAccountID]; ok {
			out[tr.ToAccountID] = b.Add(tr.Credited())
		}
	}
	for id, b := range out {
		out[id] = RoundMoney(b)
	}
	return out
}

// Validate checks the version and that every reference in the graph
// resolves.
func (s Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	accounts := make(map[uuid.UUID]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("account %s: %w", a.ID, err)
		}
		accounts[a.ID] = true
	}
	categories := make(map[uuid.UUID]CategoryType, len(s.Categories))
	for _, c := range s.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
		categories[c.ID] = c.Type
	}
	tags := make(map[uuid.UUID]bool, len(s.Tags))
	for _, t := range s.Tags {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tag %s: %w", t.ID, err)
		}
		tags[t.ID] = true
	}
	for _, t := range s.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if !accounts[t.AccountID] {
			return fmt.Errorf("transaction %s: account %s: %w", t.ID, t.AccountID, ErrNotFound)
		}
		typ, ok := categories[t.CategoryID]
		if !ok {
			return fmt.Errorf("transaction %s: category %s: %w", t.ID, t.CategoryID, ErrNotFound)
		}
		if typ != t.Type {
			return fmt.Errorf("transaction %s: %w", t.ID, ErrTypeMismatch)
		}
		for _, tag := range t.TagIDs {
			if !tags[tag] {
				return fmt.Errorf("transaction %s: tag %s: %w", t.ID, tag, ErrNotFound)
			}
		}
	}
	for _, tr := range s.Transfers {
		if err := tr.Validate(); err != nil {
			return fmt.Errorf("transfer %s: %w", tr.ID, err)
		}
		if !accounts[tr.FromAccountID] || !accounts[tr.ToAccountID] {
			return fmt.Errorf("transfer %s: %w", tr.ID, ErrNotFound)
		}
	}
	for _, b := range s.Budgets {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("budget %s: %w", b.ID, err)
		}
		if b.CategoryID != nil {
			if _, ok := categories[*b.CategoryID]; !ok {
				return fmt.Errorf("budget %s: category: %w", b.ID, ErrNotFound)
			}
		}
		if b.AccountID != nil && !accounts[*b.AccountID] {
			return fmt.Errorf("budget %s: account: %w", b.ID, ErrNotFound)
		}
	}
	return nil
}
