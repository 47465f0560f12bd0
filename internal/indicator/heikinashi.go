package indicator

import "stratx-trader-go/internal/models"

// HeikinAshiTrend reads trend continuation off candle shape: a buy needs two
// consecutive bullish bars with no lower wick, a single bearish bar with no
// upper wick sells immediately. Bearish shape takes priority over bullish
// confirmation.
type HeikinAshiTrend struct {
	tag
	previous *models.Candlestick
	signal   models.Signal
}

func NewHeikinAshiTrend() *HeikinAshiTrend {
	return &HeikinAshiTrend{tag: tag{name: "HeikinAshiTrend"}}
}

func (h *HeikinAshiTrend) Update(c *models.Candlestick) {
	prev := h.previous
	h.previous = c

	switch {
	case bearishBar(c):
		h.signal = models.SignalSell
	case prev != nil && bullishBar(c) && bullishBar(prev):
		h.signal = models.SignalBuy
	default:
		h.signal = models.SignalHold
	}
}

func (h *HeikinAshiTrend) Signal() models.Signal { return h.signal }

func bullishBar(c *models.Candlestick) bool {
	return c.Close() >= c.Open() && c.Open() <= c.Low()
}

func bearishBar(c *models.Candlestick) bool {
	return c.Close() < c.Open() && c.Open() >= c.High()
}
