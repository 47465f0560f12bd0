package indicator

import (
	"fmt"

	"stratx-trader-go/internal/models"
)

const (
	defaultOverbought = 70.0
	defaultOversold   = 30.0
)

// RSI computes a relative strength index from per-bar open-to-close changes
// and votes SELL above the overbought line, BUY below the oversold line.
type RSI struct {
	tag
	period     int
	overbought float64
	oversold   float64
	history    *models.PriceHistory
}

func NewRSI(period int, overbought, oversold float64) *RSI {
	if overbought <= 0 {
		overbought = defaultOverbought
	}
	if oversold <= 0 {
		oversold = defaultOversold
	}
	return &RSI{
		tag:        tag{name: fmt.Sprintf("RSI(%d)", period)},
		period:     period,
		overbought: overbought,
		oversold:   oversold,
		history:    models.NewPriceHistory(period),
	}
}

func (r *RSI) Update(c *models.Candlestick) {
	_ = r.history.Add(c)
}

func (r *RSI) Signal() models.Signal {
	value, ok := r.Value()
	if !ok {
		return models.SignalHold
	}
	switch {
	case value > r.overbought:
		return models.SignalSell
	case value < r.oversold:
		return models.SignalBuy
	default:
		return models.SignalHold
	}
}

// Value returns the current index in [0, 100], or false while the window is
// still warming up or no bar has moved yet.
func (r *RSI) Value() (float64, bool) {
	if r.history.Len() < r.period {
		return 0, false
	}
	var up, down float64
	for _, c := range r.history.Candles() {
		change := c.Change()
		if change > 0 {
			up += change
		} else {
			down -= change
		}
	}
	if down == 0 {
		if up == 0 {
			return 0, false
		}
		return 100, true
	}
	rs := up / down
	value := 100 - 100/(1+rs)
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return value, true
}
