package account

import (
	"fmt"
	"sync/atomic"

	"stratx-trader-go/internal/models"
)

// Close reasons recorded on trade exit.
const (
	ReasonTakeProfit      = "Take Profit"
	ReasonStopLoss        = "Stop Loss"
	ReasonTrailingStop    = "Trailing Stop"
	ReasonIndicatorSignal = "Indicator Signal"
	ReasonSessionEnd      = "Closing on exit"
	ReasonOrderRejected   = "Order rejected"
	ReasonOrderFailed     = "Failed to place order"
)

var nextTradeID int64

// Trade is one long position. The entry fee is deducted up front, so the
// tracked quote amount is what actually bought coin; profit marks are gross
// and the exit fee is charged once when the account credits the close.
type Trade struct {
	id         int64
	entryTime  int64 // epoch ms
	entryPrice float64
	amount     float64 // base asset quantity
	amountUSD  float64 // quote spent after the entry fee

	open              bool
	trailingArmed     bool
	lastProfitPercent float64

	exitTime    int64
	exitPrice   float64
	closeReason string
}

// NewTrade opens a position spending usd quote at price. fee is the taker
// fee as a fraction, e.g. 0.001 for 0.1%.
func NewTrade(usd, price float64, entryTime int64, fee float64) (*Trade, error) {
	if usd <= 0 {
		return nil, fmt.Errorf("%w: entry amount %.4f", models.ErrInsufficientFunds, usd)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: entry price %.8f", models.ErrInvalidState, price)
	}
	amountUSD := usd * (1 - fee)
	return &Trade{
		id:         atomic.AddInt64(&nextTradeID, 1),
		entryTime:  entryTime,
		entryPrice: price,
		amount:     amountUSD / price,
		amountUSD:  amountUSD,
		open:       true,
	}, nil
}

// restoreTrade rebuilds an open position from a persisted snapshot.
func restoreTrade(p models.PositionState) *Trade {
	return &Trade{
		id:         atomic.AddInt64(&nextTradeID, 1),
		entryTime:  p.EntryTime,
		entryPrice: p.EntryPrice,
		amount:     p.Amount,
		amountUSD:  p.AmountUSD,
		open:       true,
	}
}

func (t *Trade) ID() int64 { return t.id }
func (t *Trade) IsOpen() bool { return t.open }
func (t *Trade) EntryTime() int64 { return t.entryTime }
func (t *Trade) EntryPrice() float64 { return t.entryPrice }
func (t *Trade) Amount() float64 { return t.amount }
func (t *Trade) AmountUSD() float64 { return t.amountUSD }
func (t *Trade) ExitTime() int64 { return t.exitTime }
func (t *Trade) ExitPrice() float64 { return t.exitPrice }
func (t *Trade) CloseReason() string { return t.closeReason }

// Worth is the gross quote value of the position at price.
func (t *Trade) Worth(price float64) float64 { return t.amount * price }

// Profit is the gross quote profit at price.
func (t *Trade) Profit(price float64) float64 { return t.Worth(price) - t.amountUSD }

// ProfitPercent is the gross profit at price relative to the entry.
func (t *Trade) ProfitPercent(price float64) float64 {
	return t.Profit(price) / t.amountUSD * 100
}

// RealizedProfit is the gross profit at the recorded exit price. Zero for
// open trades.
func (t *Trade) RealizedProfit() float64 {
	if t.open {
		return 0
	}
	return t.Profit(t.exitPrice)
}

// HoldingTime is the trade duration in milliseconds, measured to now for
// open trades.
func (t *Trade) HoldingTime(now int64) int64 {
	if t.open {
		return now - t.entryTime
	}
	return t.exitTime - t.entryTime
}

// Close seals the trade. A second close is refused.
func (t *Trade) Close(price float64, exitTime int64, reason string) error {
	if !t.open {
		return fmt.Errorf("%w: trade %d already closed (%s)", models.ErrInvalidState, t.id, t.closeReason)
	}
	t.open = false
	t.exitPrice = price
	t.exitTime = exitTime
	t.closeReason = reason
	return nil
}

// ArmTrailingStop marks the trailing stop armed. Arming is sticky until the
// trade closes.
func (t *Trade) ArmTrailingStop() { t.trailingArmed = true }

func (t *Trade) TrailingStopArmed() bool { return t.trailingArmed }

// LastProfitPercent is the profit mark recorded on the previous price check;
// the trailing stop measures its drop against this.
func (t *Trade) LastProfitPercent() float64 { return t.lastProfitPercent }
func (t *Trade) SetLastProfitPercent(pct float64) { t.lastProfitPercent = pct }

func (t *Trade) snapshot() models.PositionState {
	return models.PositionState{
		EntryTime:  t.entryTime,
		EntryPrice: t.entryPrice,
		Amount:     t.amount,
		AmountUSD:  t.amountUSD,
	}
}
