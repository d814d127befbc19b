package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "SQLite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLite, cfg.Kind)
	assert.Equal(t, "x.db", cfg.SQLitePath)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "sqlite, memory")

	_, err = FromAppConfig(&config.Config{DataBackend: "sqlite"})
	assert.Error(t, err, "sqlite needs a path")

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{Kind: Memory}.Validate())
	assert.Error(t, Config{Kind: SQLite}.Validate())
	assert.Error(t, Config{Kind: "postgres"}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, Kinds())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, nil, Config{Kind: Memory})
	require.NoError(t, err)
	assert.Equal(t, Memory, mem.Kind)
	accounts, err := mem.Store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	require.NoError(t, mem.Cleanup())

	path := filepath.Join(t.TempDir(), "nested", "fintrack.db")
	lite, err := Open(ctx, nil, Config{Kind: SQLite, SQLitePath: path})
	require.NoError(t, err)
	assert.FileExists(t, path)
	require.NoError(t, lite.Cleanup())

	_, err = Open(ctx, nil, Config{Kind: "postgres"})
	assert.Error(t, err)
}
