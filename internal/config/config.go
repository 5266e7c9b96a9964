// Package config provides configuration management for backtest runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	btErrors "quantbt/internal/errors"
)

// Config holds all parameters of a single backtest run. A Config is
// validated once at initialization; validation failures are fatal before
// any event is processed.
type Config struct {
	StartingCash float64          `mapstructure:"starting_cash"`
	Commission   CommissionConfig `mapstructure:"commission"`
	Slippage     SlippageConfig   `mapstructure:"slippage"`
	Margin       MarginConfig     `mapstructure:"margin"`
	Fill         FillConfig       `mapstructure:"fill"`
	Liquidity    LiquidityConfig  `mapstructure:"liquidity"`
	Log          LogConfig        `mapstructure:"log"`
}

// CommissionConfig selects and parameterizes the commission model.
type CommissionConfig struct {
	Model    string  `mapstructure:"model"`     // "per_share", "per_trade", "none"
	PerShare float64 `mapstructure:"per_share"` // cost per share
	PerTrade float64 `mapstructure:"per_trade"` // flat cost per fill
	Minimum  float64 `mapstructure:"minimum"`   // floor per fill
}

// SlippageConfig selects and parameterizes the slippage model.
type SlippageConfig struct {
	Model string  `mapstructure:"model"` // "fixed_bps", "none"
	Bps   float64 `mapstructure:"bps"`   // basis points against the order side
}

// MarginConfig controls the buying-power model.
type MarginConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Leverage float64 `mapstructure:"leverage"` // e.g. 2.0 for 2:1
}

// FillConfig controls how market orders pick their reference price.
type FillConfig struct {
	PriceRule string `mapstructure:"price_rule"` // "open" or "close"
}

// LiquidityConfig limits how much of a bar's volume a single fill may take.
type LiquidityConfig struct {
	// MaxVolumeShare in (0,1]; zero disables the limit and orders fill
	// in full against every bar.
	MaxVolumeShare float64 `mapstructure:"max_volume_share"`
}

// LogConfig mirrors logging.LogConfig for file-based configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// Default returns a Config with the baseline models: flat per-trade
// commission, fixed basis-point slippage, cash-only buying power and
// close-price market fills.
func Default() *Config {
	return &Config{
		StartingCash: 100000,
		Commission: CommissionConfig{
			Model:    "per_trade",
			PerTrade: 0,
			PerShare: 0,
		},
		Slippage: SlippageConfig{
			Model: "fixed_bps",
			Bps:   0,
		},
		Margin: MarginConfig{
			Enabled:  false,
			Leverage: 1,
		},
		Fill: FillConfig{
			PriceRule: "close",
		},
		Liquidity: LiquidityConfig{
			MaxVolumeShare: 0,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/quantbt"
	}
	return filepath.Join(home, ".config", "quantbt")
}

// Load reads a backtest config file. If path is empty the default
// config directory is searched; a missing file yields Default().
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quantbt")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file: defaults apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("starting_cash", def.StartingCash)
	v.SetDefault("commission.model", def.Commission.Model)
	v.SetDefault("commission.per_share", def.Commission.PerShare)
	v.SetDefault("commission.per_trade", def.Commission.PerTrade)
	v.SetDefault("commission.minimum", def.Commission.Minimum)
	v.SetDefault("slippage.model", def.Slippage.Model)
	v.SetDefault("slippage.bps", def.Slippage.Bps)
	v.SetDefault("margin.enabled", def.Margin.Enabled)
	v.SetDefault("margin.leverage", def.Margin.Leverage)
	v.SetDefault("fill.price_rule", def.Fill.PriceRule)
	v.SetDefault("liquidity.max_volume_share", def.Liquidity.MaxVolumeShare)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.console", def.Log.Console)
}

// Validate checks all model parameters. Any failure is a
// ConfigurationError and must abort initialization.
func (c *Config) Validate() error {
	if c.StartingCash <= 0 {
		return btErrors.NewConfigurationError("starting_cash", c.StartingCash, "must be positive")
	}

	switch c.Commission.Model {
	case "per_share", "per_trade", "none", "":
	default:
		return btErrors.NewConfigurationError("commission.model", c.Commission.Model,
			"must be one of: per_share, per_trade, none")
	}
	if c.Commission.PerShare < 0 || c.Commission.PerTrade < 0 || c.Commission.Minimum < 0 {
		return btErrors.NewConfigurationError("commission", c.Commission, "costs must be non-negative")
	}

	switch c.Slippage.Model {
	case "fixed_bps", "none", "":
	default:
		return btErrors.NewConfigurationError("slippage.model", c.Slippage.Model,
			"must be one of: fixed_bps, none")
	}
	if c.Slippage.Bps < 0 {
		return btErrors.NewConfigurationError("slippage.bps", c.Slippage.Bps, "must be non-negative")
	}

	if c.Margin.Enabled && c.Margin.Leverage < 1 {
		return btErrors.NewConfigurationError("margin.leverage", c.Margin.Leverage,
			"must be at least 1 when margin is enabled")
	}

	switch c.Fill.PriceRule {
	case "open", "close":
	default:
		return btErrors.NewConfigurationError("fill.price_rule", c.Fill.PriceRule,
			"must be one of: open, close")
	}

	if c.Liquidity.MaxVolumeShare < 0 || c.Liquidity.MaxVolumeShare > 1 {
		return btErrors.NewConfigurationError("liquidity.max_volume_share", c.Liquidity.MaxVolumeShare,
			"must be in [0, 1]")
	}

	return nil
}
