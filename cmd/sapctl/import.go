package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/portfolio"
	"github.com/spf13/cobra"
)

func importCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace a source sheet from a CSV export",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "balance <csv>",
		Short: "Import the balance sheet (Ticker, Amount, Value_TWD, Purpose)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readCSV(args[0])
			if err != nil {
				return err
			}
			positions := portfolio.ParseBalanceRows(rows)
			if len(positions) == 0 {
				return fmt.Errorf("no positions found in %s", args[0])
			}
			if err := a.container.PositionRepo.ReplaceAll(cmd.Context(), positions); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d positions\n", len(positions))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "indicators <csv>",
		Short: "Import the market indicators (Key, Value)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readCSV(args[0])
			if err != nil {
				return err
			}
			set := indicators.ParseIndicatorRows(rows)
			if len(set) == 0 {
				return fmt.Errorf("no indicators found in %s", args[0])
			}
			if err := a.container.IndicatorRepo.ReplaceAll(cmd.Context(), set); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d indicators\n", len(set))
			return nil
		},
	})

	return cmd
}

// readCSV reads every row. Ragged rows are allowed; sheets export trailing
// empty cells inconsistently.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return rows, nil
}
