package config

import (
	"encoding/json"
	"fmt"
	"os"

	"stratx-trader-go/internal/models"
)

// Load reads the JSON config file at path, applies defaults and validates
// the result.
func Load(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &models.Config{Strategy: models.DefaultStrategyParams()}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs that cannot produce a runnable session.
func Validate(cfg *models.Config) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("config: symbol is required")
	}
	if cfg.FeePercent < 0 {
		return fmt.Errorf("config: negative fee percent %f", cfg.FeePercent)
	}
	if cfg.StartingBalance <= cfg.Strategy.MinUSDPerTrade {
		return fmt.Errorf("config: starting balance %.2f must exceed min_usd_per_trade %.2f",
			cfg.StartingBalance, cfg.Strategy.MinUSDPerTrade)
	}
	if cfg.Strategy.MaxOpenTrades < 1 {
		return fmt.Errorf("config: max_open_trades must be at least 1")
	}
	if cfg.Strategy.UseStopLoss && cfg.Strategy.StopLoss <= 0 {
		return fmt.Errorf("config: stop_loss must be positive when enabled")
	}
	if cfg.Strategy.UseTakeProfit && cfg.Strategy.TakeProfit <= 0 {
		return fmt.Errorf("config: take_profit must be positive when enabled")
	}
	if cfg.Strategy.UseTrailingStop && cfg.Strategy.TrailingStop <= 0 {
		return fmt.Errorf("config: trailing_stop must be positive when enabled")
	}
	return nil
}
