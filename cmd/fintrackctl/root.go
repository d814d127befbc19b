package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/filter"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// app holds the services a command runs against. It is opened by the root
// command's pre-run hook and closed by execute once the command returns.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer

	logger *applog.Logger
	ledger *services.LedgerService
	stats  *services.StatsService
	close  func() error
}

// execute runs fintrackctl with args and always releases the store.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := a.shutdown(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "fintrackctl",
		Short:         "Manage a fintrack ledger from the command line",
		Long:          `Export, import and report on a fintrack ledger without going through the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("backend", "", "storage backend (sqlite or memory)")
	flags.String("db", "", "SQLite database path")
	flags.String("timezone", "", "IANA timezone used for calendar dates")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	// Flags win over the environment, which wins over config defaults.
	for key, flag := range map[string]string{
		"data_backend":      "backend",
		"sqlite_db_path":    "db",
		"reminder_timezone": "timezone",
		"log_level":         "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}
	a.v.AutomaticEnv()

	root.AddCommand(
		newExportCmd(a),
		newImportCmd(a),
		newStatsCmd(a),
		newAccountsCmd(a),
		newBudgetsCmd(a),
		newRecalculateCmd(a),
	)
	return root, a
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cli.LoadEnvFile()
	cfg := config.Load()
	override(&cfg.DataBackend, a.v.GetString("data_backend"))
	override(&cfg.SQLiteDBPath, a.v.GetString("sqlite_db_path"))
	override(&cfg.ReminderTimezone, a.v.GetString("reminder_timezone"))
	override(&cfg.LogLevel, a.v.GetString("log_level"))

	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentCLI,
		Output:    a.errOut,
	})
	applog.SetDefault(a.logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, cleanup, err := cli.OpenStore(ctx, a.logger, cfg)
	if err != nil {
		return err
	}
	a.close = cleanup

	// Ledger events are only published by the long running server.
	a.ledger = services.NewLedgerService(store, nil, nil)
	a.ledger.SetLocation(loc)
	if err := a.ledger.Seed(ctx); err != nil {
		return err
	}
	a.stats = services.NewStatsService(store, cache.NewLRUCache[any](cfg.StatsCacheSize, cfg.StatsCacheTTL), nil)
	a.ledger.OnWrite(a.stats.Invalidate)
	return nil
}

func (a *app) shutdown() error {
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	return err
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseDay parses a YYYY-MM-DD flag value in the ledger timezone. An empty
// value is an open bound.
func (a *app) parseDay(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(filter.DateLayout, s, a.ledger.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected %s, got %q", name, filter.DateLayout, s)
	}
	return t, nil
}
