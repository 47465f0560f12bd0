package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stratx-trader-go/internal/account"
	"stratx-trader-go/internal/config"
	"stratx-trader-go/internal/downloader"
	"stratx-trader-go/internal/engine"
	"stratx-trader-go/internal/exchange"
	"stratx-trader-go/internal/indicator"
	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/models"
	"stratx-trader-go/internal/persistence"
	"stratx-trader-go/internal/reporter"
	"stratx-trader-go/internal/strategy"
	"stratx-trader-go/internal/strx"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	mode := flag.String("mode", "backtest", "run mode: backtest, simulate, live or download")
	dataPath := flag.String("data", "", "bar data file for backtests (defaults to the download location)")
	startStr := flag.String("start", "", "range start for download mode (YYYY-MM-DD)")
	endStr := flag.String("end", "", "range end for download mode (YYYY-MM-DD)")
	flag.Parse()

	// API keys live in the environment; a .env file is a convenience, not a
	// requirement.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogConfig)
	log := logger.S()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "download":
		err = runDownload(ctx, cfg, *startStr, *endStr)
	case "backtest":
		err = runBacktest(cfg, *dataPath, *startStr, *endStr)
	case "simulate":
		err = runStream(ctx, cfg, engine.Simulation)
	case "live":
		err = runStream(ctx, cfg, engine.Live)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Errorf("%s failed: %v", *mode, err)
		os.Exit(1)
	}
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -end: %w", err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("-start must precede -end")
	}
	return start, end, nil
}

func runDownload(ctx context.Context, cfg *models.Config, startStr, endStr string) error {
	start, end, err := parseRange(startStr, endStr)
	if err != nil {
		return err
	}
	path := downloader.FilePath(cfg.DataDir, cfg.Symbol, cfg.Interval, start, end)
	return downloader.New().Download(ctx, cfg.Symbol, cfg.Interval, path, start, end)
}

func runBacktest(cfg *models.Config, dataPath, startStr, endStr string) error {
	if dataPath == "" {
		start, end, err := parseRange(startStr, endStr)
		if err != nil {
			return fmt.Errorf("need -data or a -start/-end range: %w", err)
		}
		dataPath = downloader.FilePath(cfg.DataDir, cfg.Symbol, cfg.Interval, start, end)
	}

	hdr, candles, err := strx.LoadFile(dataPath, cfg.HeikinAshi)
	if err != nil {
		return fmt.Errorf("load bar data: %w", err)
	}
	logger.S().Infow("bar data loaded",
		"path", dataPath, "bars", len(candles),
		"from", time.UnixMilli(hdr.RangeStart).Format("2006-01-02"),
		"to", time.UnixMilli(hdr.RangeEnd).Format("2006-01-02"))

	acct := account.New(cfg.StartingBalance, cfg.FeePercent)
	strat := strategy.New("backtest", cfg.Strategy, acct, buildIndicators(cfg)...)
	eng, err := engine.New(engine.Options{
		Mode:        engine.Backtest,
		Symbol:      cfg.Symbol,
		Interval:    cfg.Interval,
		HeikinAshi:  cfg.HeikinAshi,
		HistorySize: cfg.HistorySize,
	}, strat, acct)
	if err != nil {
		return err
	}
	if err := eng.RunBacktest(candles); err != nil {
		return err
	}

	reporter.Summarize(acct).Render(os.Stdout, cfg.Symbol)
	return nil
}

func runStream(ctx context.Context, cfg *models.Config, mode engine.Mode) error {
	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	if mode == engine.Live && (apiKey == "" || secretKey == "") {
		return fmt.Errorf("live mode needs BINANCE_API_KEY and BINANCE_SECRET_KEY")
	}

	ex := exchange.NewBinance(apiKey, secretKey, cfg.Live.WSBaseURL, cfg.IsTestnet)

	var acct *account.Account
	if mode == engine.Live {
		quote := cfg.QuoteAsset
		if quote == "" {
			info, err := ex.SymbolInfo(cfg.Symbol)
			if err != nil {
				return err
			}
			quote = info.QuoteAsset
		}
		balance, err := ex.AssetBalance(ctx, quote)
		if err != nil {
			return fmt.Errorf("fetch %s balance: %w", quote, err)
		}
		acct = account.NewLive(balance, ex, account.ExecutionConfig{
			Symbol:             cfg.Symbol,
			RetryAttempts:      cfg.Live.RetryAttempts,
			RetryDelay:         time.Duration(cfg.Live.RetryDelayMs) * time.Millisecond,
			MarketOrderOnRetry: cfg.Live.MarketOrderOnRetry,
		})
	} else {
		acct = account.New(cfg.StartingBalance, cfg.FeePercent)
	}

	var repo persistence.SessionRepository
	if cfg.DBPath != "" {
		var err error
		repo, err = persistence.NewBadgerRepository(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open session db: %w", err)
		}
		defer repo.Close()
	}

	strat := strategy.New(mode.String(), cfg.Strategy, acct, buildIndicators(cfg)...)
	eng, err := engine.New(engine.Options{
		Mode:                 mode,
		Symbol:               cfg.Symbol,
		Interval:             cfg.Interval,
		HeikinAshi:           cfg.HeikinAshi,
		HistorySize:          cfg.HistorySize,
		Market:               ex,
		Repo:                 repo,
		ReconnectMaxAttempts: cfg.Live.ReconnectMaxAttempts,
		ReconnectBaseDelay:   time.Duration(cfg.Live.ReconnectBaseDelayMs) * time.Millisecond,
	}, strat, acct)
	if err != nil {
		return err
	}

	if err := eng.Run(ctx); err != nil {
		return err
	}
	reporter.Summarize(acct).Render(os.Stdout, cfg.Symbol)
	return nil
}

func buildIndicators(cfg *models.Config) []indicator.Indicator {
	var out []indicator.Indicator
	ic := cfg.Indicators
	if ic.EMA != nil {
		out = append(out, indicator.NewEMA(ic.EMA.Period))
	}
	if ic.WMA != nil {
		out = append(out, indicator.NewWMA(ic.WMA.Period))
	}
	if ic.RSI != nil {
		out = append(out, indicator.NewRSI(ic.RSI.Period, ic.RSI.Overbought, ic.RSI.Oversold))
	}
	if ic.HeikinAshiTrend {
		out = append(out, indicator.NewHeikinAshiTrend())
	}
	if ic.Grid != nil {
		out = append(out, indicator.NewGrid(ic.Grid.Size, ic.Grid.RebaseThreshold))
	}
	if ic.SupportResistance != nil {
		out = append(out, indicator.NewSupportResistance(ic.SupportResistance.Sensitivity))
	}
	return out
}
