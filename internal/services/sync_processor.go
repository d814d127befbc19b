package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/metrics"
	"fintrack/internal/ports"
)

// SyncProcessor keeps a TransactionMirror in line with the ledger by
// reacting to ledger events.
type SyncProcessor struct {
	store   ports.Store
	mirror  ports.TransactionMirror
	metrics *metrics.Collector
}

func NewSyncProcessor(store ports.Store, mirror ports.TransactionMirror, m *metrics.Collector) *SyncProcessor {
	return &SyncProcessor{store: store, mirror: mirror, metrics: m}
}

// HandleEvent applies one ledger event. Transaction events touch a single
// row; anything that can rename or cascade over many rows triggers a full
// resync.
func (p *SyncProcessor) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Entity {
	case EntityTransaction:
		if ev.Kind == amqp.KindDeleted {
			err := p.mirror.RemoveTransaction(ctx, ev.ID)
			p.metrics.RecordMirror("remove", err)
			if err != nil {
				return fmt.Errorf("remove transaction %s: %w", ev.ID, err)
			}
			slog.InfoContext(ctx, "Removed transaction from mirror", "id", ev.ID)
			return nil
		}
		return p.upsert(ctx, ev)
	case EntityAccount, EntityCategory, EntityTag, EntityLedger:
		return p.Resync(ctx)
	default:
		slog.DebugContext(ctx, "Ignoring ledger event", "entity", ev.Entity, "kind", ev.Kind)
		return nil
	}
}

func (p *SyncProcessor) upsert(ctx context.Context, ev *amqp.LedgerEvent) error {
	t, err := p.store.GetTransaction(ctx, ev.ID)
	if err != nil {
		// Deleted before we got here; the delete event follows.
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction vanished before sync", "id", ev.ID)
			return nil
		}
		return fmt.Errorf("get transaction %s: %w", ev.ID, err)
	}
	names, err := p.names(ctx)
	if err != nil {
		return err
	}
	err = p.mirror.UpsertTransaction(ctx, mirrorRow(t, names))
	p.metrics.RecordMirror("upsert", err)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
	}
	slog.InfoContext(ctx, "Synced transaction to mirror", "id", t.ID, "kind", ev.Kind)
	return nil
}

// Resync rewrites the mirror from the full transaction list.
func (p *SyncProcessor) Resync(ctx context.Context) error {
	txs, err := p.store.ListTransactions(ctx, core.TransactionQuery{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	names, err := p.names(ctx)
	if err != nil {
		return err
	}
	rows := make([]ports.MirrorRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, mirrorRow(t, names))
	}
	err = p.mirror.ReplaceAll(ctx, rows)
	p.metrics.RecordMirror("replace", err)
	if err != nil {
		return fmt.Errorf("replace mirror rows: %w", err)
	}
	slog.InfoContext(ctx, "Mirror resynced", "rows", len(rows))
	return nil
}

func (p *SyncProcessor) names(ctx context.Context) (export.Names, error) {
	accounts, err := p.store.ListAccounts(ctx)
	if err != nil {
		return export.Names{}, fmt.Errorf("list accounts: %w", err)
	}
	categories, err := p.store.ListCategories(ctx, "")
	if err != nil {
		return export.Names{}, fmt.Errorf("list categories: %w", err)
	}
	tags, err := p.store.ListTags(ctx)
	if err != nil {
		return export.Names{}, fmt.Errorf("list tags: %w", err)
	}
	return export.NewNames(accounts, categories, tags), nil
}

func mirrorRow(t core.Transaction, names export.Names) ports.MirrorRow {
	acc := names.Accounts[t.AccountID]
	return ports.MirrorRow{
		Transaction: t,
		Account:     acc.Name,
		Currency:    acc.Currency,
		Category:    names.Categories[t.CategoryID].Name,
		Tags:        names.TagNames(t),
	}
}
