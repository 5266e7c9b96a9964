package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quantbt/internal/config"
	"quantbt/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.ResultStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dbPath := config.DefaultConfigDir() + "/quantbt.db"
	resultStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open run archive, results will not be saved")
	} else {
		app.Store = resultStore
	}

	rootCmd := &cobra.Command{
		Use:   "quantbt",
		Short: "quantbt - deterministic event-driven backtesting",
		Long: `quantbt replays historical market data through trading strategies
under simulated execution and accounting.

Runs are deterministic: the same data, configuration and strategy always
produce the same fills and the same equity curve.

Use 'quantbt run' to execute a single backtest or 'quantbt sweep' to
search a parameter grid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/quantbt/config.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newSweepCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("quantbt v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate backtest configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Account")
	output.Printf("  Starting Cash:   %s\n", FormatMoney(cfg.StartingCash))
	output.Printf("  Margin Enabled:  %v\n", cfg.Margin.Enabled)
	if cfg.Margin.Enabled {
		output.Printf("  Leverage:        %.1fx\n", cfg.Margin.Leverage)
	}
	output.Println()

	output.Bold("Execution")
	output.Printf("  Fill Price Rule: %s\n", cfg.Fill.PriceRule)
	output.Printf("  Commission:      %s\n", cfg.Commission.Model)
	output.Printf("  Slippage:        %s\n", cfg.Slippage.Model)
	output.Printf("  Max Volume Share: %.2f\n", cfg.Liquidity.MaxVolumeShare)
}
