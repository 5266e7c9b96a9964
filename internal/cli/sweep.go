package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quantbt/internal/feed"
	"quantbt/internal/models"
	"quantbt/internal/strategy"
	"quantbt/internal/sweep"
)

func newSweepCmd(app *App) *cobra.Command {
	var (
		dataGlob string
		shorts   string
		longs    string
		quantity int64
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep SMA crossover parameters in parallel",
		Long: `Run the SMA crossover strategy across a grid of period pairs and
rank the variants by final equity. Each variant runs in an isolated
engine with its own copy of the data.`,
		Example: `  quantbt sweep --data "data/*.csv" --shorts 5,10,20 --longs 30,50,100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			shortPeriods, err := parsePeriods(shorts)
			if err != nil {
				return fmt.Errorf("parsing --shorts: %w", err)
			}
			longPeriods, err := parsePeriods(longs)
			if err != nil {
				return fmt.Errorf("parsing --longs: %w", err)
			}

			paths, symbols, err := resolveData(dataGlob)
			if err != nil {
				return err
			}

			instruments := make([]models.Instrument, len(symbols))
			for i, sym := range symbols {
				instruments[i] = models.Instrument{Symbol: sym, LotSize: 1}
			}

			var variants []sweep.Variant
			for _, s := range shortPeriods {
				for _, l := range longPeriods {
					if s >= l {
						continue
					}
					s, l := s, l
					variants = append(variants, sweep.Variant{
						Name:   fmt.Sprintf("sma-%d-%d", s, l),
						Config: app.Config,
						Strategy: func() strategy.Strategy {
							return strategy.NewSMACrossover(s, l, quantity)
						},
						Feeds: func() ([]feed.Feed, error) {
							f, err := feed.LoadCSVDir(paths, symbols)
							if err != nil {
								return nil, err
							}
							return []feed.Feed{f}, nil
						},
					})
				}
			}
			if len(variants) == 0 {
				return fmt.Errorf("no valid period pairs (every short must be below some long)")
			}

			runner := sweep.NewRunner(instruments,
				sweep.WithWorkers(workers),
				sweep.WithLogger(app.Logger))

			outcomes, err := runner.Run(cmd.Context(), variants)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(sweepSummaries(outcomes))
			}
			printSweep(output, outcomes)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataGlob, "data", "", "glob of CSV bar files (required)")
	cmd.Flags().StringVar(&shorts, "shorts", "5,10,20", "comma-separated short SMA periods")
	cmd.Flags().StringVar(&longs, "longs", "30,50,100", "comma-separated long SMA periods")
	cmd.Flags().Int64Var(&quantity, "quantity", 100, "order quantity in shares")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = one per CPU)")
	cmd.MarkFlagRequired("data")

	return cmd
}

func parsePeriods(csv string) ([]int, error) {
	var periods []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid period %q", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("period %d must be positive", n)
		}
		periods = append(periods, n)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("no periods given")
	}
	return periods, nil
}

type sweepSummary struct {
	Name        string  `json:"name"`
	RunID       string  `json:"run_id,omitempty"`
	FinalEquity float64 `json:"final_equity,omitempty"`
	TotalReturn float64 `json:"total_return,omitempty"`
	MaxDrawdown float64 `json:"max_drawdown,omitempty"`
	SharpeRatio float64 `json:"sharpe_ratio,omitempty"`
	WinRate     float64 `json:"win_rate,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func sweepSummaries(outcomes []sweep.Outcome) []sweepSummary {
	summaries := make([]sweepSummary, 0, len(outcomes))
	for _, o := range outcomes {
		s := sweepSummary{Name: o.Name}
		if o.Err != nil {
			s.Error = o.Err.Error()
		} else if o.Report != nil {
			s.RunID = o.Report.RunID
			s.FinalEquity = o.Report.FinalEquity
			s.TotalReturn = o.Report.TotalReturn
			s.MaxDrawdown = o.Report.MaxDrawdown
			s.SharpeRatio = o.Report.SharpeRatio
			s.WinRate = o.Report.WinRate
		}
		summaries = append(summaries, s)
	}
	return summaries
}

func printSweep(output *Output, outcomes []sweep.Outcome) {
	output.Bold("Parameter Sweep")
	output.Println()

	table := NewTable(output, "Variant", "Final Equity", "Return", "Drawdown", "Sharpe", "Win Rate")
	for _, o := range outcomes {
		if o.Err != nil {
			table.AddRow(o.Name, "failed: "+o.Err.Error(), "", "", "", "")
			continue
		}
		r := o.Report
		table.AddRow(o.Name,
			FormatMoney(r.FinalEquity),
			output.Percent(r.TotalReturn),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown),
			fmt.Sprintf("%.2f", r.SharpeRatio),
			fmt.Sprintf("%.1f%%", r.WinRate))
	}
	table.Render()

	if best := sweep.Best(outcomes); best != nil {
		output.Println()
		output.Success("best variant: %s (%s)", best.Name, FormatMoney(best.Report.FinalEquity))
	}
}
