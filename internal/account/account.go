// Package account tracks the quote balance and the trade ledger, and routes
// live entries and exits through the exchange order retry ladder.
package account

import (
	"fmt"
	"math"
	"time"

	"github.com/jxskiss/base62"
	"go.uber.org/zap"

	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/models"
)

// Executor places real orders. Live accounts require one; backtests and
// simulations run without it and settle trades locally.
type Executor interface {
	PlaceLimitOrder(symbol string, side models.Side, quantity, price float64, clientOrderID string) (*models.OrderResult, error)
	PlaceMarketOrder(symbol string, side models.Side, quantity float64, clientOrderID string) (*models.OrderResult, error)
	SymbolInfo(symbol string) (*models.SymbolInfo, error)
	Connected() bool
}

// ExecutionConfig tunes the live order retry ladder.
type ExecutionConfig struct {
	Symbol             string
	RetryAttempts      int
	RetryDelay         time.Duration
	MarketOrderOnRetry int // attempt number that switches to a market order, 0 never
}

// Account owns the quote balance and every trade of a session. All mutations
// go through OpenTrade and CloseTrade so the balance and ledger cannot drift
// apart.
type Account struct {
	balance        float64
	initialBalance float64
	fee            float64 // fraction per fill
	trades         []*Trade
	openCount      int

	exec    Executor // nil for simulated settlement
	execCfg ExecutionConfig
	log     *zap.SugaredLogger
}

// New returns a locally settled account, used by backtests and simulations.
func New(balance, feePercent float64) *Account {
	return &Account{
		balance:        balance,
		initialBalance: balance,
		fee:            feePercent / 100,
		log:            logger.S(),
	}
}

// NewLive returns an account that places real orders through exec. The
// balance mirror starts from the exchange-reported quote balance.
func NewLive(balance float64, exec Executor, cfg ExecutionConfig) *Account {
	a := New(balance, 0)
	a.exec = exec
	a.execCfg = cfg
	return a
}

func (a *Account) Balance() float64 { return a.balance }
func (a *Account) InitialBalance() float64 { return a.initialBalance }
func (a *Account) Fee() float64 { return a.fee }
func (a *Account) Trades() []*Trade { return a.trades }
func (a *Account) OpenTradeCount() int { return a.openCount }

// OpenTrades returns the currently open positions, oldest first.
func (a *Account) OpenTrades() []*Trade {
	var open []*Trade
	for _, t := range a.trades {
		if t.IsOpen() {
			open = append(open, t)
		}
	}
	return open
}

// OpenTrade records the trade and debits the balance. Live accounts place
// the entry order first; the balance stays untouched unless the order fills.
func (a *Account) OpenTrade(t *Trade, price float64) error {
	if t.AmountUSD() > a.balance {
		return fmt.Errorf("%w: need %.2f, have %.2f", models.ErrInsufficientFunds, t.AmountUSD(), a.balance)
	}

	if a.exec != nil {
		if err := a.placeOrder(t, models.SideBuy, price); err != nil {
			return err
		}
	}

	a.trades = append(a.trades, t)
	a.openCount++
	a.balance -= t.AmountUSD()
	a.log.Infow("trade opened",
		"id", t.ID(), "price", price, "amount", t.Amount(), "usd", t.AmountUSD(), "balance", a.balance)
	return nil
}

// CloseTrade seals the trade and credits the proceeds minus the exit fee.
// Live accounts place the exit order first; a failed exit still seals the
// trade with the failure reason so the ledger never holds limbo positions.
func (a *Account) CloseTrade(t *Trade, price float64, now int64, reason string) error {
	if !t.IsOpen() {
		return fmt.Errorf("%w: trade %d already closed", models.ErrInvalidState, t.ID())
	}

	if a.exec != nil {
		if err := a.placeOrder(t, models.SideSell, price); err != nil {
			return err
		}
	}

	if err := t.Close(price, now, reason); err != nil {
		return err
	}
	a.openCount--
	a.balance += t.Worth(price) * (1 - a.fee)
	a.log.Infow("trade closed",
		"id", t.ID(), "reason", reason, "price", price,
		"profit", t.RealizedProfit(), "profitPct", t.ProfitPercent(price), "balance", a.balance)
	return nil
}

// placeOrder runs the retry ladder: IOC limit orders at the current price,
// optionally switching to a market order on a configured attempt. Expired
// orders retry after a delay; a rejection or transport failure closes the
// trade with the matching reason.
func (a *Account) placeOrder(t *Trade, side models.Side, price float64) error {
	if !a.exec.Connected() {
		return models.ErrNotConnected
	}

	info, err := a.exec.SymbolInfo(a.execCfg.Symbol)
	if err != nil {
		return fmt.Errorf("symbol info: %w", err)
	}
	qty := snapToStep(t.Amount(), info.Lot.StepSize)
	if qty < info.Lot.MinQty || qty*price < info.Lot.MinNotional {
		return fmt.Errorf("%w: quantity %.8f below exchange minimums", models.ErrInsufficientFunds, qty)
	}

	now := func() int64 { return time.Now().UnixMilli() }
	attempts := a.execCfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		var res *models.OrderResult
		var err error
		id := newClientOrderID()
		if a.execCfg.MarketOrderOnRetry > 0 && attempt >= a.execCfg.MarketOrderOnRetry {
			res, err = a.exec.PlaceMarketOrder(a.execCfg.Symbol, side, qty, id)
		} else {
			res, err = a.exec.PlaceLimitOrder(a.execCfg.Symbol, side, qty, price, id)
		}
		if err != nil {
			a.failTrade(t, side, price, now(), ReasonOrderFailed)
			return fmt.Errorf("%w: attempt %d: %v", models.ErrOrderRetryExhausted, attempt, err)
		}

		switch res.Status {
		case models.OrderStatusFilled:
			a.log.Infow("order filled",
				"side", side, "qty", res.ExecutedQty, "avgPrice", res.AvgPrice, "attempt", attempt)
			return nil
		case models.OrderStatusExpired:
			a.log.Warnw("order expired, retrying", "side", side, "attempt", attempt)
			time.Sleep(a.execCfg.RetryDelay)
		case models.OrderStatusRejected:
			a.failTrade(t, side, price, now(), ReasonOrderRejected)
			return fmt.Errorf("%w: %s order for trade %d", models.ErrOrderRejected, side, t.ID())
		default:
			a.failTrade(t, side, price, now(), ReasonOrderFailed)
			return fmt.Errorf("%w: unexpected order status %s", models.ErrOrderRetryExhausted, res.Status)
		}
	}

	a.failTrade(t, side, price, now(), ReasonOrderFailed)
	return fmt.Errorf("%w: %s order after %d attempts", models.ErrOrderRetryExhausted, side, attempts)
}

// failTrade seals a trade whose order could not be placed. A failed entry
// joins the ledger already closed, with no balance movement. A failed exit
// still releases the position count and credits the mark so the ledger never
// holds limbo positions.
func (a *Account) failTrade(t *Trade, side models.Side, price float64, now int64, reason string) {
	if err := t.Close(price, now, reason); err != nil {
		a.log.Errorw("failed to seal trade after order failure", "id", t.ID(), "err", err)
		return
	}
	if side == models.SideBuy {
		a.trades = append(a.trades, t)
	} else {
		a.openCount--
		a.balance += t.Worth(price) * (1 - a.fee)
	}
	a.log.Errorw("order failure closed trade", "id", t.ID(), "side", side, "reason", reason)
}

// RestorePositions rebuilds the open trades from a persisted session.
func (a *Account) RestorePositions(positions []models.PositionState) {
	for _, p := range positions {
		t := restoreTrade(p)
		a.trades = append(a.trades, t)
		a.openCount++
	}
}

// Snapshot captures the state that survives a restart.
func (a *Account) Snapshot() []models.PositionState {
	var out []models.PositionState
	for _, t := range a.trades {
		if t.IsOpen() {
			out = append(out, t.snapshot())
		}
	}
	return out
}

// SetBalance overrides the balance mirror, used when restoring a session.
func (a *Account) SetBalance(balance float64) { a.balance = balance }

func snapToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step) * step
}

func newClientOrderID() string {
	return "stx" + string(base62.FormatInt(time.Now().UnixNano()))
}
