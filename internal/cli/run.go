package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"quantbt/internal/analytics"
	"quantbt/internal/engine"
	"quantbt/internal/feed"
	"quantbt/internal/models"
	"quantbt/internal/strategy"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		dataGlob    string
		stratName   string
		quantity    int64
		shortPeriod int
		longPeriod  int
		cash        float64
		noSave      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single backtest",
		Long: `Run a strategy over CSV bar data and print a performance report.

Each CSV file supplies one symbol; the file name (without extension) is
used as the symbol. Bars must be in chronological order per symbol.`,
		Example: `  quantbt run --data "data/*.csv" --strategy buyandhold --quantity 100
  quantbt run --data "data/AAPL.csv" --strategy smacross --short 10 --long 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			cfg := app.Config
			if cash > 0 {
				override := *cfg
				override.StartingCash = cash
				cfg = &override
			}

			paths, symbols, err := resolveData(dataGlob)
			if err != nil {
				return err
			}

			dataFeed, err := feed.LoadCSVDir(paths, symbols)
			if err != nil {
				return fmt.Errorf("loading market data: %w", err)
			}

			strat, err := buildStrategy(stratName, quantity, shortPeriod, longPeriod)
			if err != nil {
				return err
			}

			instruments := make([]models.Instrument, len(symbols))
			for i, sym := range symbols {
				instruments[i] = models.Instrument{Symbol: sym, LotSize: 1}
			}

			bt, err := engine.New(cfg, strat, instruments, []feed.Feed{dataFeed},
				engine.WithLogger(app.Logger))
			if err != nil {
				return fmt.Errorf("initializing backtest: %w", err)
			}

			result, runErr := bt.Run(cmd.Context())
			report := analytics.Analyze(result)

			if app.Store != nil && !noSave {
				if err := app.Store.SaveResult(cmd.Context(), result, stratName); err != nil {
					app.Logger.Warn().Err(err).Msg("failed to archive run")
				}
			}

			if output.IsJSON() {
				if err := output.JSON(report); err != nil {
					return err
				}
			} else {
				printReport(output, result, report)
			}

			if runErr != nil {
				output.Error("run aborted: %v", runErr)
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataGlob, "data", "", "glob of CSV bar files, one symbol per file (required)")
	cmd.Flags().StringVar(&stratName, "strategy", "buyandhold", "strategy: buyandhold, smacross or rsi")
	cmd.Flags().Int64Var(&quantity, "quantity", 100, "order quantity in shares")
	cmd.Flags().IntVar(&shortPeriod, "short", 10, "short SMA period (smacross) or RSI period (rsi)")
	cmd.Flags().IntVar(&longPeriod, "long", 30, "long SMA period (smacross)")
	cmd.Flags().Float64Var(&cash, "cash", 0, "override starting cash")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not archive the run")
	cmd.MarkFlagRequired("data")

	return cmd
}

// resolveData expands a glob into symbol -> path, deriving each symbol
// from its file name. Symbols are sorted so feed registration order is
// stable across runs.
func resolveData(glob string) (map[string]string, []string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid data glob %q: %w", glob, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("no data files match %q", glob)
	}

	paths := make(map[string]string, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		symbol := strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
		paths[symbol] = m
	}

	symbols := make([]string, 0, len(paths))
	for sym := range paths {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return paths, symbols, nil
}

func buildStrategy(name string, quantity int64, shortPeriod, longPeriod int) (strategy.Strategy, error) {
	switch name {
	case "buyandhold":
		return strategy.NewBuyAndHold(quantity), nil
	case "smacross":
		if shortPeriod >= longPeriod {
			return nil, fmt.Errorf("smacross: short period %d must be below long period %d", shortPeriod, longPeriod)
		}
		return strategy.NewSMACrossover(shortPeriod, longPeriod, quantity), nil
	case "rsi":
		return strategy.NewRSIReversion(shortPeriod, quantity), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want buyandhold, smacross or rsi)", name)
	}
}

func printReport(output *Output, result *engine.Result, report *analytics.Report) {
	output.Bold("Backtest Report")
	output.Dim("run %s  state %s", result.RunID, result.State)
	output.Println()

	output.Printf("  Starting Cash:    %s\n", FormatMoney(startingCash(result)))
	output.Printf("  Final Equity:     %s\n", FormatMoney(report.FinalEquity))
	output.Printf("  Total Return:     %s\n", output.Percent(report.TotalReturn))
	output.Printf("  Annualized:       %s\n", output.Percent(report.AnnualizedReturn))
	output.Printf("  Max Drawdown:     %.2f%%\n", report.MaxDrawdown)
	output.Printf("  Sharpe Ratio:     %.2f\n", report.SharpeRatio)
	output.Printf("  Volatility:       %.2f%%\n", report.Volatility)
	output.Println()

	output.Printf("  Realized PnL:     %s\n", output.PnL(report.RealizedPnL))
	output.Printf("  Unrealized PnL:   %s\n", output.PnL(report.UnrealizedPnL))
	output.Printf("  Commission Paid:  %s\n", FormatMoney(report.TotalCommission))
	output.Println()

	output.Printf("  Orders:           %d (%d rejected, %d cancelled)\n",
		report.OrderCount, report.RejectedOrders, report.CancelledOrders)
	output.Printf("  Fills:            %d\n", report.FillCount)

	if report.ClosedTrades > 0 {
		output.Println()
		output.Printf("  Closed Trades:    %d\n", report.ClosedTrades)
		output.Printf("  Win Rate:         %.1f%%\n", report.WinRate)
		output.Printf("  Profit Factor:    %.2f\n", report.ProfitFactor)
		output.Printf("  Avg Win / Loss:   %s / %s\n",
			output.PnL(report.AvgWin), output.PnL(report.AvgLoss))
	}
}

func startingCash(result *engine.Result) float64 {
	f, _ := result.StartingCash.Float64()
	return f
}
