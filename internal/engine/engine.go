// Package engine drives a trading session: it turns market data into candle
// events, dispatches them to the strategy and enforces the risk exits. The
// same dispatch loop serves backtests, simulations and live trading; only
// the data source and the account's settlement differ.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stratx-trader-go/internal/account"
	"stratx-trader-go/internal/exchange"
	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/models"
	"stratx-trader-go/internal/persistence"
	"stratx-trader-go/internal/strategy"
)

// Mode selects the data source and settlement of a session.
type Mode int

const (
	Backtest Mode = iota
	Simulation
	Live
)

func (m Mode) String() string {
	switch m {
	case Backtest:
		return "backtest"
	case Simulation:
		return "simulation"
	case Live:
		return "live"
	default:
		return "unknown"
	}
}

const maxReconnectDelay = 5 * time.Minute

// Options configure a session.
type Options struct {
	Mode        Mode
	Symbol      string
	Interval    string
	HeikinAshi  bool
	HistorySize int

	// Stream modes only.
	Market               exchange.MarketData
	Repo                 persistence.SessionRepository // nil disables session persistence
	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration
}

// Engine owns one session. It is not safe for concurrent use; all candle
// events must arrive from a single goroutine.
type Engine struct {
	opts     Options
	strategy *strategy.Strategy
	account  *account.Account
	params   models.StrategyParams
	history  *models.PriceHistory

	pending     *models.PendingCandle
	previous    *models.Candlestick
	lastPrice   float64
	currentTime int64
	ticks       int64

	log *zap.SugaredLogger
}

// New wires a session together. Stream modes require opts.Market.
func New(opts Options, strat *strategy.Strategy, acct *account.Account) (*Engine, error) {
	if opts.Mode != Backtest && opts.Market == nil {
		return nil, fmt.Errorf("%s mode requires market data", opts.Mode)
	}
	if opts.ReconnectMaxAttempts < 1 {
		opts.ReconnectMaxAttempts = 10
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = time.Second
	}
	return &Engine{
		opts:     opts,
		strategy: strat,
		account:  acct,
		params:   strat.Params(),
		history:  models.NewPriceHistory(opts.HistorySize),
		log:      logger.S(),
	}, nil
}

func (e *Engine) Account() *account.Account { return e.account }
func (e *Engine) History() *models.PriceHistory { return e.history }

// RunBacktest replays pre-loaded bars through the dispatch loop and closes
// remaining positions at the final price when configured to do so.
func (e *Engine) RunBacktest(candles []*models.Candlestick) error {
	if len(candles) == 0 {
		return errors.New("backtest: no candles")
	}
	e.log.Infow("backtest starting",
		"symbol", e.opts.Symbol, "candles", len(candles), "balance", e.account.Balance())

	for _, c := range candles {
		e.lastPrice = c.Close()
		e.currentTime = c.CloseTime()
		e.onCandleClose(c)
	}
	e.closeRemaining()

	e.log.Infow("backtest finished", "balance", e.account.Balance(), "trades", len(e.account.Trades()))
	return nil
}

// Run streams market data until the context is cancelled or the reconnect
// budget is spent. Each connection re-warms the indicators from history;
// candle dedup keeps the overlap harmless.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Infow("session starting", "mode", e.opts.Mode, "symbol", e.opts.Symbol, "interval", e.opts.Interval)
	e.restoreSession()
	defer e.saveSession()

	attempts := 0
	for {
		before := e.ticks
		err := e.streamOnce(ctx)
		if err == nil {
			e.closeRemaining()
			return nil
		}
		if e.ticks > before {
			// The connection was healthy for a while, start counting over.
			attempts = 0
		}
		attempts++
		if attempts > e.opts.ReconnectMaxAttempts {
			return fmt.Errorf("market stream: giving up after %d reconnect attempts: %w",
				e.opts.ReconnectMaxAttempts, err)
		}

		delay := e.opts.ReconnectBaseDelay << (attempts - 1)
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		e.log.Warnw("market stream lost, reconnecting", "attempt", attempts, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			e.closeRemaining()
			return nil
		case <-time.After(delay):
		}
	}
}

// streamOnce runs one warmup + subscribe cycle. It returns nil on a
// deliberate shutdown and the stream error otherwise.
func (e *Engine) streamOnce(ctx context.Context) error {
	if err := e.warmUp(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}

	sub, err := e.opts.Market.SubscribeCandles(ctx, e.opts.Symbol, e.opts.Interval, e.onTick)
	if err != nil {
		return err
	}
	defer sub.Close()

	select {
	case <-ctx.Done():
		return nil
	case err := <-sub.Err():
		return err
	}
}

// warmUp seeds the indicators with recent finalized bars. No trading happens
// here; replayed bars after a reconnect are dropped by the history dedup.
func (e *Engine) warmUp(ctx context.Context) error {
	bars, err := e.opts.Market.HistoricalCandles(ctx, e.opts.Symbol, e.opts.Interval, e.history.Capacity())
	if err != nil {
		return err
	}
	warmed := 0
	for _, bar := range bars {
		c, err := models.NewCandlestick(bar.CloseTime, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		if err != nil {
			return err
		}
		if e.opts.HeikinAshi {
			c = c.ToHeikinAshi(e.previous)
		}
		if err := e.history.Add(c); err != nil {
			if errors.Is(err, models.ErrDuplicateEntry) {
				continue
			}
			return err
		}
		e.strategy.OnCandleClose(c)
		e.previous = c
		e.lastPrice = c.Close()
		e.currentTime = c.CloseTime()
		warmed++
	}
	e.log.Infow("warmup complete", "bars", warmed, "history", e.history.Len())
	return nil
}

// onTick handles one stream event: price updates run the risk exits, the
// final tick of an interval seals the bar and runs full dispatch.
func (e *Engine) onTick(tick models.CandleTick) {
	e.ticks++
	e.lastPrice = tick.Close
	e.currentTime = tick.CloseTime

	if tick.IsFinal {
		c, err := e.sealBar(tick)
		e.pending = nil
		if err != nil {
			e.log.Errorw("dropping unsealable bar", "closeTime", tick.CloseTime, "err", err)
			return
		}
		e.onCandleClose(c)
		return
	}

	if e.pending == nil || e.pending.CloseTime() != tick.CloseTime {
		pending, err := models.NewPendingCandle(tick.CloseTime, tick.Open, tick.High, tick.Low, tick.Close, tick.Volume)
		if err != nil {
			e.log.Errorw("dropping bad tick", "err", err)
			return
		}
		e.pending = pending
	} else if err := e.pending.Update(tick.High, tick.Low, tick.Close, tick.Volume); err != nil {
		e.log.Errorw("dropping bad tick", "err", err)
		return
	}

	e.checkRiskExits()
}

// sealBar finalizes the pending candle for the tick's interval, or builds
// the bar directly when no ticks preceded the final one.
func (e *Engine) sealBar(tick models.CandleTick) (*models.Candlestick, error) {
	if e.pending != nil && e.pending.CloseTime() == tick.CloseTime {
		if err := e.pending.Update(tick.High, tick.Low, tick.Close, tick.Volume); err != nil {
			return nil, err
		}
		return e.pending.Finalize(e.previous, e.opts.HeikinAshi)
	}
	c, err := models.NewCandlestick(tick.CloseTime, tick.Open, tick.High, tick.Low, tick.Close, tick.Volume)
	if err != nil {
		return nil, err
	}
	if e.opts.HeikinAshi {
		c = c.ToHeikinAshi(e.previous)
	}
	return c, nil
}

// onCandleClose is the full dispatch for one finalized bar. Risk exits are
// evaluated before any new signal may open or close positions.
func (e *Engine) onCandleClose(c *models.Candlestick) {
	if err := e.history.Add(c); err != nil {
		if errors.Is(err, models.ErrDuplicateEntry) {
			e.log.Warnw("replayed candle skipped", "closeTime", c.CloseTime())
		} else {
			e.log.Errorw("candle not recorded", "err", err)
		}
		return
	}
	e.previous = c

	e.checkRiskExits()
	e.strategy.OnCandleClose(c)

	switch e.strategy.Signal() {
	case models.SignalBuy:
		e.tryBuy()
	case models.SignalSell:
		e.trySell()
	}
}

// checkRiskExits walks the open trades in entry order. Take-profit wins over
// stop-loss, which wins over the trailing stop. The profit mark for the
// trailing stop is only advanced for trades that stay open.
func (e *Engine) checkRiskExits() {
	for _, t := range e.account.OpenTrades() {
		profit := t.ProfitPercent(e.lastPrice)
		switch {
		case e.params.UseTakeProfit && profit >= e.params.TakeProfit:
			e.closeTrade(t, account.ReasonTakeProfit)
		case e.params.UseStopLoss && profit <= -e.params.StopLoss:
			e.closeTrade(t, account.ReasonStopLoss)
		case e.params.UseTrailingStop:
			if !t.TrailingStopArmed() && profit >= e.params.ArmTrailingStopAt {
				t.ArmTrailingStop()
				e.log.Debugw("trailing stop armed", "trade", t.ID(), "profit", profit)
			}
			if t.TrailingStopArmed() && profit > 0 &&
				profit-t.LastProfitPercent() <= -e.params.TrailingStop {
				e.closeTrade(t, account.ReasonTrailingStop)
			}
		}
		if t.IsOpen() {
			t.SetLastProfitPercent(profit)
		}
	}
}

func (e *Engine) tryBuy() {
	amount := e.strategy.BuyAmount()
	if amount <= 0 || amount > e.account.Balance() {
		return
	}
	if !e.strategy.IsValidBuy(amount) {
		return
	}
	t, err := account.NewTrade(amount, e.lastPrice, e.currentTime, e.account.Fee())
	if err != nil {
		e.log.Errorw("trade rejected", "err", err)
		return
	}
	if err := e.account.OpenTrade(t, e.lastPrice); err != nil {
		e.log.Errorw("entry failed", "err", err)
	}
}

func (e *Engine) trySell() {
	if !e.strategy.IsValidSell() {
		return
	}
	for _, t := range e.account.OpenTrades() {
		e.closeTrade(t, account.ReasonIndicatorSignal)
		if !e.params.SellAllOnSignal {
			break
		}
	}
}

func (e *Engine) closeTrade(t *account.Trade, reason string) {
	if err := e.account.CloseTrade(t, e.lastPrice, e.currentTime, reason); err != nil {
		e.log.Errorw("exit failed", "trade", t.ID(), "reason", reason, "err", err)
	}
}

// closeRemaining liquidates open positions at the last seen price when the
// session is configured to not carry positions across runs.
func (e *Engine) closeRemaining() {
	if !e.params.CloseOpenTradesOnExit || e.lastPrice <= 0 {
		return
	}
	for _, t := range e.account.OpenTrades() {
		e.closeTrade(t, account.ReasonSessionEnd)
	}
}

func (e *Engine) restoreSession() {
	if e.opts.Repo == nil {
		return
	}
	state, err := e.opts.Repo.LoadState()
	if err != nil {
		e.log.Warnw("session state unreadable, starting fresh", "err", err)
		return
	}
	if state == nil {
		return
	}
	if state.Symbol != e.opts.Symbol {
		e.log.Warnw("stored session is for another symbol, ignoring",
			"stored", state.Symbol, "configured", e.opts.Symbol)
		return
	}
	e.account.SetBalance(state.Balance)
	e.account.RestorePositions(state.OpenPositions)
	e.log.Infow("session restored",
		"balance", state.Balance, "openPositions", len(state.OpenPositions), "savedAt", state.LastUpdateTime)
}

func (e *Engine) saveSession() {
	if e.opts.Repo == nil {
		return
	}
	state := &models.SessionState{
		Symbol:         e.opts.Symbol,
		Mode:           e.opts.Mode.String(),
		Balance:        e.account.Balance(),
		OpenPositions:  e.account.Snapshot(),
		LastUpdateTime: time.Now().UTC(),
	}
	if err := e.opts.Repo.SaveState(state); err != nil {
		e.log.Errorw("session state not saved", "err", err)
		return
	}
	e.log.Infow("session saved", "balance", state.Balance, "openPositions", len(state.OpenPositions))
}
