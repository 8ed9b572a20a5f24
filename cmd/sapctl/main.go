// Package main is the operator CLI. It imports the balance sheet and market
// indicator sheets, runs reports and syncs on demand, and edits settings,
// working directly on the databases in SAP_DATA_DIR.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/di"
	"github.com/Larry-kang/GAS-Asset-Tracker/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds the container shared by every subcommand
type app struct {
	container *di.Container
	cfg       *config.Config
	log       zerolog.Logger
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := "warn"
	if verbose {
		level = "debug"
	}
	a.log = logger.New(logger.Config{Level: level, Pretty: true, Output: cmd.ErrOrStderr()})

	container, err := di.Wire(cfg, a.log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.container = container
	return nil
}

func (a *app) close() {
	if a.container != nil {
		_ = a.container.Close()
		a.container = nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sapctl",
		Short:         "Operate the SAP treasury tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().String("data-dir", "", "Database directory (overrides SAP_DATA_DIR)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")

	root.AddCommand(
		importCmd(a),
		reportCmd(a),
		settingsCmd(a),
		ledgerCmd(a),
		syncCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
