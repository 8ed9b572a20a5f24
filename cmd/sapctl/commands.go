package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/report"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/spf13/cobra"
)

func reportCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the portfolio context and broadcast the daily report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				pc, err := a.container.Automation.BuildContext(cmd.Context())
				if err != nil {
					return err
				}
				alerts := a.container.Rules.Evaluate(pc)
				msg := report.Daily(pc, alerts, a.container.Strategy, time.Now())
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", msg.Title, msg.Description)
				return nil
			}

			result, err := a.container.Automation.RunReport(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report sent: run %s, %d alerts\n", result.Context.RunID, len(result.Alerts))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the report instead of sending it")
	return cmd
}

func settingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write runtime settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Show one setting, or all of them with secrets masked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.container.NewSettings()
			if len(args) == 1 {
				fmt.Fprintln(cmd.OutOrStdout(), svc.Get(cmd.Context(), args[0], ""))
				return nil
			}

			all := svc.All(cmd.Context())
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range keys {
				v := all[k]
				if settings.IsSecret(k) {
					v = settings.Mask(v)
				}
				fmt.Fprintf(w, "%s\t%s\n", k, v)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.container.NewSettings().Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})

	return cmd
}

func ledgerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the unified asset ledger",
	}

	var exchange string
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []ledger.Entry
			var err error
			if exchange != "" {
				entries, err = a.container.LedgerRepo.ByExchange(cmd.Context(), exchange)
			} else {
				entries, err = a.container.LedgerRepo.All(cmd.Context())
			}
			if err != nil {
				return err
			}

			if asJSON {
				if entries == nil {
					entries = []ledger.Entry{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, h := range ledger.Header {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				fmt.Fprint(w, h)
			}
			fmt.Fprintln(w)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Exchange, e.Currency, e.Amount.String(), e.Type, e.Status, e.Meta,
					e.Updated.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&exchange, "exchange", "", "Only show one venue partition")
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.AddCommand(list)

	return cmd
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh every venue partition of the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep := a.container.SyncManager.RunAll(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range rep.Results {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Venue, r.Outcome, r.Entries, r.Error)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failures := rep.Failures(); len(failures) > 0 {
				return fmt.Errorf("%d of %d venues failed", len(failures), len(rep.Results))
			}
			return nil
		},
	}
}
