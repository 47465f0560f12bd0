package models

// Config holds every runtime parameter of the trader. It is loaded from a
// JSON file; API keys come from the environment, never from this file.
type Config struct {
	Symbol          string  `json:"symbol"`      // trading pair, e.g. "BTCUSDT"
	BaseAsset       string  `json:"base_asset"`  // e.g. "BTC"
	QuoteAsset      string  `json:"quote_asset"` // e.g. "USDT"
	Interval        string  `json:"interval"`    // kline interval, e.g. "1m", "15m"
	IsTestnet       bool    `json:"is_testnet"`
	StartingBalance float64 `json:"starting_balance"`     // quote balance for backtest/simulation
	FeePercent      float64 `json:"buy_sell_fee_percent"` // taker fee per fill, e.g. 0.1
	HeikinAshi      bool    `json:"heikin_ashi"`          // smooth finalized candles before dispatch
	HistorySize     int     `json:"history_size"`         // price history window, 0 means default
	DBPath          string  `json:"db_path"`              // session state database, empty disables persistence
	DataDir         string  `json:"data_dir"`             // downloaded bar data directory

	Live       LiveConfig       `json:"live"`
	Strategy   StrategyParams   `json:"strategy"`
	Indicators IndicatorsConfig `json:"indicators"`
	LogConfig  LogConfig        `json:"log"`
}

// LiveConfig tunes the order retry ladder and the market stream reconnect
// policy. Zero values fall back to the defaults applied in Normalize.
type LiveConfig struct {
	WSBaseURL            string `json:"ws_base_url"`
	RetryAttempts        int    `json:"retry_attempts"`          // order placement attempts before giving up
	RetryDelayMs         int    `json:"retry_delay_ms"`          // pause between order attempts
	MarketOrderOnRetry   int    `json:"market_order_on_retry"`   // attempt number that switches to a market order, 0 disables
	ReconnectMaxAttempts int    `json:"reconnect_max_attempts"`  // consecutive stream reconnects before a fatal stop
	ReconnectBaseDelayMs int    `json:"reconnect_base_delay_ms"` // first reconnect delay, doubled per attempt
}

// StrategyParams are the risk and signal aggregation knobs shared by every
// run mode. DefaultStrategyParams documents the semantics of each field.
type StrategyParams struct {
	MaxOpenTrades         int      `json:"max_open_trades"`
	UseTakeProfit         bool     `json:"use_take_profit"`
	TakeProfit            float64  `json:"take_profit"` // percent, relative to entry
	UseStopLoss           bool     `json:"use_stop_loss"`
	StopLoss              float64  `json:"stop_loss"` // percent, positive number
	UseTrailingStop       bool     `json:"use_trailing_stop"`
	ArmTrailingStopAt     float64  `json:"arm_trailing_stop_at"` // percent profit that arms the trail
	TrailingStop          float64  `json:"trailing_stop"`        // percent drop from last mark that fires it
	SellBasedOnIndicators bool     `json:"sell_based_on_indicators"`
	CloseOpenTradesOnExit bool     `json:"close_open_trades_on_exit"`
	MinBuySignals         int      `json:"min_buy_signals"` // -1 requires all indicators to vote buy
	MinSellSignals        int      `json:"min_sell_signals"`
	BuyAmountPercent      float64  `json:"buy_amount_percent"` // percent of balance per entry
	MinUSDPerTrade        float64  `json:"min_usd_per_trade"`
	MaxUSDPerTrade        float64  `json:"max_usd_per_trade"` // -1 disables the cap
	DontBuyIfSellGreater  bool     `json:"dont_buy_if_sell_greater"`
	SellAllOnSignal       bool     `json:"sell_all_on_signal"`
	RequiredForBuy        []string `json:"required_for_buy"`  // indicator names that must each vote buy
	RequiredForSell       []string `json:"required_for_sell"` // indicator names that must each vote sell
}

// DefaultStrategyParams returns the baseline parameter set.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		MaxOpenTrades:         5,
		UseTakeProfit:         true,
		TakeProfit:            5.0,
		UseStopLoss:           true,
		StopLoss:              2.0,
		UseTrailingStop:       true,
		ArmTrailingStopAt:     0.1,
		TrailingStop:          0.5,
		SellBasedOnIndicators: true,
		CloseOpenTradesOnExit: true,
		MinBuySignals:         -1,
		MinSellSignals:        -1,
		BuyAmountPercent:      25.0,
		MinUSDPerTrade:        1.0,
		MaxUSDPerTrade:        -1,
		DontBuyIfSellGreater:  true,
		SellAllOnSignal:       true,
	}
}

// IndicatorsConfig enables and tunes individual indicators. A nil section
// leaves that indicator out of the strategy.
type IndicatorsConfig struct {
	EMA               *EMAConfig  `json:"ema,omitempty"`
	WMA               *WMAConfig  `json:"wma,omitempty"`
	RSI               *RSIConfig  `json:"rsi,omitempty"`
	HeikinAshiTrend   bool        `json:"heikin_ashi_trend,omitempty"`
	Grid              *GridConfig `json:"grid,omitempty"`
	SupportResistance *SRConfig   `json:"support_resistance,omitempty"`
}

type EMAConfig struct {
	Period int `json:"period"`
}

type WMAConfig struct {
	Period int `json:"period"`
}

type RSIConfig struct {
	Period     int     `json:"period"`
	Overbought float64 `json:"overbought"`
	Oversold   float64 `json:"oversold"`
}

type GridConfig struct {
	Size            float64 `json:"size"`             // quote distance between grid lines
	RebaseThreshold int     `json:"rebase_threshold"` // jumps from baseline before re-anchoring
}

type SRConfig struct {
	Sensitivity float64 `json:"sensitivity"` // relative distance for level matches
}

// LogConfig controls the zap logger and log file rotation.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size per log file (MB)
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	MaxAge     int    `json:"max_age"`     // max age of rotated files (days)
	Compress   bool   `json:"compress"`    // gzip rotated files
}

// Normalize fills unset fields with their defaults.
func (c *Config) Normalize() {
	if c.Interval == "" {
		c.Interval = "1m"
	}
	if c.HistorySize < 1 {
		c.HistorySize = DefaultHistorySize
	}
	if c.Live.WSBaseURL == "" {
		c.Live.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if c.Live.RetryAttempts < 1 {
		c.Live.RetryAttempts = 3
	}
	if c.Live.RetryDelayMs < 1 {
		c.Live.RetryDelayMs = 500
	}
	if c.Live.ReconnectMaxAttempts < 1 {
		c.Live.ReconnectMaxAttempts = 10
	}
	if c.Live.ReconnectBaseDelayMs < 1 {
		c.Live.ReconnectBaseDelayMs = 1000
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}
