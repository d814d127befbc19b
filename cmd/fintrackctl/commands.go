package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fintrack/internal/services"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger",
	}

	var jsonOut string
	jsonCmd := &cobra.Command{
		Use:   "json",
		Short: "Write a full JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.writeTo(jsonOut, func(w io.Writer) error {
				return a.ledger.ExportJSON(cmd.Context(), w)
			})
		},
	}
	jsonCmd.Flags().StringVarP(&jsonOut, "output", "o", "", "output file (default stdout)")

	var csvOut, from, to string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := a.parseDay("from", from)
			if err != nil {
				return err
			}
			end, err := a.parseDay("to", to)
			if err != nil {
				return err
			}
			return a.writeTo(csvOut, func(w io.Writer) error {
				return a.ledger.ExportCSV(cmd.Context(), w, start, end)
			})
		},
	}
	csvCmd.Flags().StringVarP(&csvOut, "output", "o", "", "output file (default stdout)")
	csvCmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	csvCmd.Flags().StringVar(&to, "to", "", "first day to exclude (YYYY-MM-DD)")

	cmd.AddCommand(jsonCmd, csvCmd)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "json FILE",
		Short: "Restore a JSON snapshot into an empty ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			snap, err := a.ledger.ImportJSON(cmd.Context(), bufio.NewReader(f))
			if err != nil {
				return err
			}
			a.logger.Info("Imported snapshot", "path", args[0],
				"accounts", len(snap.Accounts), "transactions", len(snap.Transactions))
			fmt.Fprintf(a.out, "imported %d accounts, %d categories, %d tags, %d transactions, %d transfers, %d budgets\n",
				len(snap.Accounts), len(snap.Categories), len(snap.Tags),
				len(snap.Transactions), len(snap.Transfers), len(snap.Budgets))
			return nil
		},
	})
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report ledger statistics",
	}

	var from, to, currency string
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print income, spending and net for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var q services.StatsQuery
			var err error
			if q.From, err = a.parseDay("from", from); err != nil {
				return err
			}
			if q.To, err = a.parseDay("to", to); err != nil {
				return err
			}
			q.Currency = currency

			s, err := a.stats.Summary(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "income\t%s\n", s.Income.StringFixed(2))
			fmt.Fprintf(tw, "spending\t%s\n", s.Spending.StringFixed(2))
			fmt.Fprintf(tw, "net\t%s\n", s.Net.StringFixed(2))
			fmt.Fprintf(tw, "transactions\t%d\n", s.Count)
			return tw.Flush()
		},
	}
	summary.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	summary.Flags().StringVar(&to, "to", "", "first day to exclude (YYYY-MM-DD)")
	summary.Flags().StringVar(&currency, "currency", "", "currency to report (default: default_currency setting)")

	cmd.AddCommand(summary)
	return cmd
}

func newAccountsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect balance accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := a.ledger.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCURRENCY\tBALANCE")
			for _, acc := range accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", acc.ID, acc.Name, acc.Currency, acc.Balance.StringFixed(2))
			}
			return tw.Flush()
		},
	})
	return cmd
}

func newBudgetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Inspect budgets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current period of every budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			budgets, err := a.ledger.ListBudgets(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPERIOD\tSPENT\tLIMIT\tREMAINING\tPROGRESS")
			for _, b := range budgets {
				r, err := a.ledger.BudgetStatus(cmd.Context(), b.ID)
				if err != nil {
					return fmt.Errorf("budget %q: %w", b.Name, err)
				}
				mark := ""
				if r.Overspent {
					mark = " !"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%%%s\n",
					b.Name, b.Period, r.Spent.StringFixed(2), r.Limit.StringFixed(2),
					r.Remaining.StringFixed(2), r.Progress.Shift(2).StringFixed(0), mark)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func newRecalculateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "Rebuild every account balance from its history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ledger.RecalculateBalances(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("Recalculated account balances")
			return nil
		},
	}
}

// writeTo runs write against path, or stdout when path is empty.
func (a *app) writeTo(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(a.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
