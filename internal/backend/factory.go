package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/memory"
	"fintrack/internal/ports"
	"fintrack/internal/storage"
)

// CleanupFunc releases the resources held by a store.
type CleanupFunc func() error

// Opened is a ready store together with its cleanup.
type Opened struct {
	Kind    Kind
	Store   ports.Store
	Cleanup CleanupFunc
}

type opener func(ctx context.Context, logger *slog.Logger, cfg Config) (ports.Store, CleanupFunc, error)

var openers = map[Kind]opener{
	SQLite: openSQLite,
	Memory: openMemory,
}

// Open creates the store described by cfg. A nil logger uses slog.Default.
func Open(ctx context.Context, logger *slog.Logger, cfg Config) (*Opened, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	open, ok := openers[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("no opener for backend %s", cfg.Kind)
	}
	store, cleanup, err := open(ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Kind, err)
	}
	return &Opened{Kind: cfg.Kind, Store: store, Cleanup: cleanup}, nil
}

func openSQLite(ctx context.Context, logger *slog.Logger, cfg Config) (ports.Store, CleanupFunc, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "Opened SQLite ledger", "db_path", cfg.SQLitePath)
	return repo, repo.Close, nil
}

func openMemory(ctx context.Context, logger *slog.Logger, _ Config) (ports.Store, CleanupFunc, error) {
	store := memory.New()
	logger.WarnContext(ctx, "Using in-memory ledger, data is lost on exit")
	return store, store.Close, nil
}
