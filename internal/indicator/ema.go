package indicator

import (
	"fmt"

	"stratx-trader-go/internal/models"
)

// EMA votes on the close price's position relative to an exponential moving
// average over its window. Until the window is full it holds.
type EMA struct {
	tag
	period  int
	history *models.PriceHistory
}

func NewEMA(period int) *EMA {
	return &EMA{
		tag:     tag{name: fmt.Sprintf("EMA(%d)", period)},
		period:  period,
		history: models.NewPriceHistory(period),
	}
}

func (e *EMA) Update(c *models.Candlestick) {
	// Replayed bars are dropped by the history's dedup.
	_ = e.history.Add(c)
}

func (e *EMA) Signal() models.Signal {
	latest, ok := e.history.Latest()
	if !ok {
		return models.SignalHold
	}
	ema, ok := e.value(latest.Close())
	if !ok {
		return models.SignalHold
	}
	switch {
	case ema > latest.Close():
		return models.SignalSell
	case ema < latest.Close():
		return models.SignalBuy
	default:
		return models.SignalHold
	}
}

// value seeds the average at the latest close and folds the window in
// insertion order with k = 2/(period+1).
func (e *EMA) value(seed float64) (float64, bool) {
	if e.history.Len() < e.period {
		return 0, false
	}
	k := 2.0 / (float64(e.period) + 1)
	ema := seed
	for _, c := range e.history.Candles() {
		ema += k * (c.Close() - ema)
	}
	return ema, true
}
