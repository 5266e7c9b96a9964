package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quantbt/internal/store"
)

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse archived backtest runs",
	}

	var (
		stratFilter string
		limit       int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("run archive unavailable")
			}
			output := NewOutput(cmd)

			records, err := app.Store.ListRuns(cmd.Context(), store.RunFilter{
				Strategy: stratFilter,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("no archived runs")
				return nil
			}

			table := NewTable(output, "Run", "Date", "Strategy", "State", "Final Equity", "Fills")
			for _, rec := range records {
				table.AddRow(
					rec.RunID[:8],
					rec.CreatedAt.Format(time.DateOnly),
					rec.Strategy,
					rec.State,
					FormatMoney(rec.FinalEquity),
					FormatQuantity(int64(rec.FillCount)))
			}
			table.Render()
			return nil
		},
	}
	listCmd.Flags().StringVar(&stratFilter, "strategy", "", "filter by strategy name")
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one archived run with its fill ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("run archive unavailable")
			}
			output := NewOutput(cmd)
			runID := args[0]

			rec, err := app.Store.GetRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			fills, err := app.Store.GetFills(cmd.Context(), runID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"run":   rec,
					"fills": fills,
				})
			}

			output.Bold("Run %s", rec.RunID)
			output.Printf("  Date:           %s\n", rec.CreatedAt.Format(time.RFC3339))
			output.Printf("  Strategy:       %s\n", rec.Strategy)
			output.Printf("  State:          %s\n", rec.State)
			output.Printf("  Starting Cash:  %s\n", FormatMoney(rec.StartingCash))
			output.Printf("  Final Equity:   %s\n", FormatMoney(rec.FinalEquity))
			output.Printf("  Orders:         %d\n", rec.OrderCount)
			output.Println()

			if len(fills) == 0 {
				output.Dim("no fills")
				return nil
			}
			table := NewTable(output, "Time", "Symbol", "Side", "Qty", "Price", "Commission")
			for _, f := range fills {
				table.AddRow(
					f.Timestamp.Format("2006-01-02 15:04"),
					f.Symbol,
					string(f.Side),
					FormatQuantity(f.Quantity),
					f.Price.StringFixed(2),
					f.Commission.StringFixed(2))
			}
			table.Render()
			return nil
		},
	})

	return cmd
}
