package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratx-trader-go/internal/account"
	"stratx-trader-go/internal/exchange"
	"stratx-trader-go/internal/indicator"
	"stratx-trader-go/internal/models"
	"stratx-trader-go/internal/strategy"
)

// scriptedIndicator replays a fixed vote and counts updates.
type scriptedIndicator struct {
	name    string
	signal  models.Signal
	updates int
	reqBuy  bool
	reqSell bool
}

func (s *scriptedIndicator) Name() string { return s.name }
func (s *scriptedIndicator) Update(*models.Candlestick) { s.updates++ }
func (s *scriptedIndicator) Signal() models.Signal { return s.signal }
func (s *scriptedIndicator) RequiredForBuy() bool { return s.reqBuy }
func (s *scriptedIndicator) RequiredForSell() bool { return s.reqSell }
func (s *scriptedIndicator) SetRequiredForBuy(r bool) { s.reqBuy = r }
func (s *scriptedIndicator) SetRequiredForSell(r bool) { s.reqSell = r }

func testParams() models.StrategyParams {
	p := models.DefaultStrategyParams()
	p.MinBuySignals = 1
	p.MinSellSignals = 1
	p.CloseOpenTradesOnExit = false
	return p
}

func backtestEngine(t *testing.T, params models.StrategyParams, acct *account.Account, inds ...*scriptedIndicator) *Engine {
	t.Helper()
	strat := strategy.New("test", params, acct, toIndicators(inds)...)
	e, err := New(Options{Mode: Backtest, Symbol: "BTCUSDT", Interval: "1m", HistorySize: 50}, strat, acct)
	require.NoError(t, err)
	return e
}

func toIndicators(inds []*scriptedIndicator) []indicator.Indicator {
	out := make([]indicator.Indicator, len(inds))
	for i, ind := range inds {
		out[i] = ind
	}
	return out
}

func closes(t *testing.T, prices ...float64) []*models.Candlestick {
	t.Helper()
	out := make([]*models.Candlestick, len(prices))
	for i, p := range prices {
		c, err := models.NewCandlestick(int64(i+1)*60_000, p, p, p, p, 100)
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

func openTradeAt(t *testing.T, acct *account.Account, usd, price float64) *account.Trade {
	t.Helper()
	tr, err := account.NewTrade(usd, price, 0, acct.Fee())
	require.NoError(t, err)
	require.NoError(t, acct.OpenTrade(tr, price))
	return tr
}

func TestBacktestTakeProfit(t *testing.T) {
	acct := account.New(100, 0)
	e := backtestEngine(t, testParams(), acct, &scriptedIndicator{name: "a", signal: models.SignalBuy})

	require.NoError(t, e.RunBacktest(closes(t, 100, 106)))

	trades := acct.Trades()
	require.NotEmpty(t, trades)
	first := trades[0]
	assert.False(t, first.IsOpen())
	assert.Equal(t, account.ReasonTakeProfit, first.CloseReason())
	assert.InDelta(t, 6.0, first.ProfitPercent(first.ExitPrice()), 1e-9)
}

func TestBacktestStopLoss(t *testing.T) {
	acct := account.New(100, 0)
	tr := openTradeAt(t, acct, 50, 100)
	e := backtestEngine(t, testParams(), acct, &scriptedIndicator{name: "a", signal: models.SignalHold})

	require.NoError(t, e.RunBacktest(closes(t, 99, 97.9)))

	assert.False(t, tr.IsOpen())
	assert.Equal(t, account.ReasonStopLoss, tr.CloseReason())
	assert.Equal(t, 97.9, tr.ExitPrice())
}

func TestBacktestTrailingStop(t *testing.T) {
	p := testParams()
	p.UseTakeProfit = false
	p.UseStopLoss = false
	p.UseTrailingStop = true
	p.ArmTrailingStopAt = 0.1
	p.TrailingStop = 0.5

	acct := account.New(100, 0)
	tr := openTradeAt(t, acct, 50, 100)
	e := backtestEngine(t, p, acct, &scriptedIndicator{name: "a", signal: models.SignalHold})

	// +1% arms the trail, the drop to +0.3% gives back 0.7% and fires it.
	require.NoError(t, e.RunBacktest(closes(t, 101, 100.3)))

	assert.False(t, tr.IsOpen())
	assert.Equal(t, account.ReasonTrailingStop, tr.CloseReason())
	assert.Equal(t, 100.3, tr.ExitPrice())
}

func TestBacktestTrailingStopNeverClosesAtLoss(t *testing.T) {
	p := testParams()
	p.UseTakeProfit = false
	p.UseStopLoss = false
	p.UseTrailingStop = true
	p.ArmTrailingStopAt = 0.1
	p.TrailingStop = 0.5

	acct := account.New(100, 0)
	tr := openTradeAt(t, acct, 50, 100)
	e := backtestEngine(t, p, acct, &scriptedIndicator{name: "a", signal: models.SignalHold})

	// Armed at +1%, then straight through zero: profit is negative at the
	// would-be trigger, so the trade stays open.
	require.NoError(t, e.RunBacktest(closes(t, 101, 99.5)))

	assert.True(t, tr.IsOpen())
}

func TestRiskExitsRunBeforeSignals(t *testing.T) {
	acct := account.New(100, 0)
	tr := openTradeAt(t, acct, 50, 100)
	// The indicator screams sell, but the bar is deep in take-profit
	// territory. The risk exit must have sealed the trade first.
	e := backtestEngine(t, testParams(), acct, &scriptedIndicator{name: "a", signal: models.SignalSell})

	require.NoError(t, e.RunBacktest(closes(t, 106)))

	assert.False(t, tr.IsOpen())
	assert.Equal(t, account.ReasonTakeProfit, tr.CloseReason())
}

func TestIndicatorSellClosesAllWhenConfigured(t *testing.T) {
	p := testParams()
	p.UseTakeProfit = false
	p.UseStopLoss = false
	p.UseTrailingStop = false
	p.SellAllOnSignal = true

	acct := account.New(100, 0)
	t1 := openTradeAt(t, acct, 30, 100)
	t2 := openTradeAt(t, acct, 30, 100)
	e := backtestEngine(t, p, acct, &scriptedIndicator{name: "a", signal: models.SignalSell})

	require.NoError(t, e.RunBacktest(closes(t, 101)))

	assert.False(t, t1.IsOpen())
	assert.False(t, t2.IsOpen())
	assert.Equal(t, account.ReasonIndicatorSignal, t1.CloseReason())
}

func TestIndicatorSellClosesOneWhenNotSellAll(t *testing.T) {
	p := testParams()
	p.UseTakeProfit = false
	p.UseStopLoss = false
	p.UseTrailingStop = false
	p.SellAllOnSignal = false

	acct := account.New(100, 0)
	t1 := openTradeAt(t, acct, 30, 100)
	t2 := openTradeAt(t, acct, 30, 100)
	e := backtestEngine(t, p, acct, &scriptedIndicator{name: "a", signal: models.SignalSell})

	require.NoError(t, e.RunBacktest(closes(t, 101)))

	assert.False(t, t1.IsOpen(), "oldest trade closes first")
	assert.True(t, t2.IsOpen())
}

func TestSessionEndClosesOpenTrades(t *testing.T) {
	p := testParams()
	p.CloseOpenTradesOnExit = true

	acct := account.New(100, 0)
	tr := openTradeAt(t, acct, 50, 100)
	e := backtestEngine(t, p, acct, &scriptedIndicator{name: "a", signal: models.SignalHold})

	require.NoError(t, e.RunBacktest(closes(t, 100.5)))

	assert.False(t, tr.IsOpen())
	assert.Equal(t, account.ReasonSessionEnd, tr.CloseReason())
	assert.Equal(t, 100.5, tr.ExitPrice())
}

func TestReplayedCandleDispatchedOnce(t *testing.T) {
	acct := account.New(100, 0)
	ind := &scriptedIndicator{name: "a", signal: models.SignalHold}
	e := backtestEngine(t, testParams(), acct, ind)

	c, err := models.NewCandlestick(60_000, 100, 100, 100, 100, 10)
	require.NoError(t, err)
	replay, err := models.NewCandlestick(60_000, 100, 100, 100, 100, 10)
	require.NoError(t, err)

	require.NoError(t, e.RunBacktest([]*models.Candlestick{c, replay}))

	assert.Equal(t, 1, ind.updates, "duplicate close time reaches indicators once")
	assert.Equal(t, 1, e.History().Len())
}

func TestBacktestRejectsEmptyInput(t *testing.T) {
	acct := account.New(100, 0)
	e := backtestEngine(t, testParams(), acct, &scriptedIndicator{name: "a"})
	assert.Error(t, e.RunBacktest(nil))
}

// fakeMarket scripts the stream lifecycle for reconnect tests.
type fakeMarket struct {
	bars           []models.CandleTick
	subscribeCalls int
	streamErr      error
	ticks          []models.CandleTick
}

func (f *fakeMarket) HistoricalCandles(context.Context, string, string, int) ([]models.CandleTick, error) {
	return f.bars, nil
}

func (f *fakeMarket) SubscribeCandles(_ context.Context, _, _ string, onTick func(models.CandleTick)) (*exchange.Subscription, error) {
	f.subscribeCalls++
	sub := exchange.NewSubscription(nil)
	go func() {
		for _, tick := range f.ticks {
			onTick(tick)
		}
		if f.streamErr != nil {
			sub.Fail(f.streamErr)
		}
	}()
	return sub, nil
}

func streamEngine(t *testing.T, market exchange.MarketData, maxAttempts int) *Engine {
	t.Helper()
	acct := account.New(100, 0)
	strat := strategy.New("test", testParams(), acct, toIndicators([]*scriptedIndicator{{name: "a"}})...)
	e, err := New(Options{
		Mode:                 Simulation,
		Symbol:               "BTCUSDT",
		Interval:             "1m",
		HistorySize:          50,
		Market:               market,
		ReconnectMaxAttempts: maxAttempts,
		ReconnectBaseDelay:   time.Millisecond,
	}, strat, acct)
	require.NoError(t, err)
	return e
}

func TestRunGivesUpAfterReconnectBudget(t *testing.T) {
	market := &fakeMarket{streamErr: errors.New("connection reset")}
	e := streamEngine(t, market, 2)

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "giving up")
	// Initial connection plus two reconnect attempts.
	assert.Equal(t, 3, market.subscribeCalls)
}

func TestRunStopsCleanlyOnContextCancel(t *testing.T) {
	market := &fakeMarket{} // stream stays silent and healthy
	e := streamEngine(t, market, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 1, market.subscribeCalls)
}

func TestRunWarmupFeedsIndicators(t *testing.T) {
	market := &fakeMarket{
		bars: []models.CandleTick{
			{CloseTime: 60_000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10, IsFinal: true},
			{CloseTime: 120_000, Open: 100, High: 102, Low: 100, Close: 101, Volume: 10, IsFinal: true},
		},
		streamErr: errors.New("drop"),
	}
	e := streamEngine(t, market, 1)

	_ = e.Run(context.Background())
	assert.Equal(t, 2, e.History().Len(), "warmup bars recorded once despite reconnects")
}
