package indicator

import (
	"fmt"

	"stratx-trader-go/internal/models"
)

// WMA votes on the close price's position relative to a linearly weighted
// moving average, newest bar weighted highest.
type WMA struct {
	tag
	period  int
	history *models.PriceHistory
}

func NewWMA(period int) *WMA {
	return &WMA{
		tag:     tag{name: fmt.Sprintf("WMA(%d)", period)},
		period:  period,
		history: models.NewPriceHistory(period),
	}
}

func (w *WMA) Update(c *models.Candlestick) {
	_ = w.history.Add(c)
}

func (w *WMA) Signal() models.Signal {
	latest, ok := w.history.Latest()
	if !ok {
		return models.SignalHold
	}
	wma, ok := w.value()
	if !ok {
		return models.SignalHold
	}
	switch {
	case wma > latest.Close():
		return models.SignalSell
	case wma < latest.Close():
		return models.SignalBuy
	default:
		return models.SignalHold
	}
}

func (w *WMA) value() (float64, bool) {
	if w.history.Len() < w.period {
		return 0, false
	}
	var sum, weights float64
	for i, c := range w.history.Candles() {
		weight := float64(i+1) / float64(w.period)
		sum += c.Close() * weight
		weights += weight
	}
	return sum / weights, true
}
