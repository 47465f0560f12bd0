package models

import (
	"fmt"
	"sync/atomic"
)

var nextCandleID int64

// Candlestick is a finalized, immutable OHLCV bar. All fields are set at
// construction and only readable through accessors afterwards.
type Candlestick struct {
	id        int64
	closeTime int64
	open      float64
	high      float64
	low       float64
	close     float64
	volume    int64
}

// NewCandlestick validates the raw values and returns a finalized bar.
// closeTime is the bar's close timestamp in epoch milliseconds.
func NewCandlestick(closeTime int64, open, high, low, close float64, volume int64) (*Candlestick, error) {
	if err := validateBar(closeTime, open, high, low, close, volume); err != nil {
		return nil, err
	}
	return &Candlestick{
		id:        atomic.AddInt64(&nextCandleID, 1),
		closeTime: closeTime,
		open:      open,
		high:      high,
		low:       low,
		close:     close,
		volume:    volume,
	}, nil
}

func validateBar(closeTime int64, open, high, low, close float64, volume int64) error {
	if closeTime < 0 {
		return fmt.Errorf("%w: negative close time %d", ErrInvalidCandlestick, closeTime)
	}
	if open < 0 || high < 0 || low < 0 || close < 0 {
		return fmt.Errorf("%w: negative price (o=%f h=%f l=%f c=%f)", ErrInvalidCandlestick, open, high, low, close)
	}
	if volume < 0 {
		return fmt.Errorf("%w: negative volume %d", ErrInvalidCandlestick, volume)
	}
	return nil
}

func (c *Candlestick) ID() int64 { return c.id }
func (c *Candlestick) CloseTime() int64 { return c.closeTime }
func (c *Candlestick) Open() float64 { return c.open }
func (c *Candlestick) High() float64 { return c.high }
func (c *Candlestick) Low() float64 { return c.low }
func (c *Candlestick) Close() float64 { return c.close }
func (c *Candlestick) Volume() int64 { return c.volume }

// Change is the absolute close-to-open move of the bar.
func (c *Candlestick) Change() float64 { return c.close - c.open }

// ChangePercent is the close-to-open move relative to the open. A zero open
// yields zero instead of dividing by it.
func (c *Candlestick) ChangePercent() float64 {
	if c.open == 0 {
		return 0
	}
	return (c.close - c.open) / c.open * 100
}

// ToHeikinAshi returns a smoothed copy of the bar derived from the previous
// (already smoothed) bar. With no previous bar the input is returned as is,
// so the first bar of a series stays raw.
func (c *Candlestick) ToHeikinAshi(prev *Candlestick) *Candlestick {
	if prev == nil {
		return c
	}
	haClose := (c.open + c.high + c.low + c.close) / 4
	haOpen := (prev.open + prev.close) / 2
	haHigh := max3(c.high, haOpen, haClose)
	haLow := min3(c.low, haOpen, haClose)
	return &Candlestick{
		id:        c.id,
		closeTime: c.closeTime,
		open:      haOpen,
		high:      haHigh,
		low:       haLow,
		close:     haClose,
		volume:    c.volume,
	}
}

// Equals reports whether two bars describe the same market data. The
// identity counter is ignored so a reloaded bar still matches.
func (c *Candlestick) Equals(other *Candlestick) bool {
	if other == nil {
		return false
	}
	return c.closeTime == other.closeTime &&
		c.open == other.open && c.high == other.high &&
		c.low == other.low && c.close == other.close &&
		c.volume == other.volume
}

func (c *Candlestick) String() string {
	return fmt.Sprintf("Candlestick{t=%d o=%.8f h=%.8f l=%.8f c=%.8f v=%d}",
		c.closeTime, c.open, c.high, c.low, c.close, c.volume)
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// PendingCandle is the in-progress bar built from streaming ticks. It is the
// only mutable candle representation; Finalize converts it into an immutable
// Candlestick exactly once.
type PendingCandle struct {
	closeTime int64
	open      float64
	high      float64
	low       float64
	close     float64
	volume    int64
	finalized bool
}

// NewPendingCandle starts an in-progress bar from the first tick of an interval.
func NewPendingCandle(closeTime int64, open, high, low, close float64, volume int64) (*PendingCandle, error) {
	if err := validateBar(closeTime, open, high, low, close, volume); err != nil {
		return nil, err
	}
	return &PendingCandle{
		closeTime: closeTime,
		open:      open,
		high:      high,
		low:       low,
		close:     close,
		volume:    volume,
	}, nil
}

// Update folds a newer tick of the same interval into the bar. The open is
// fixed at construction; high and low only widen.
func (p *PendingCandle) Update(high, low, close float64, volume int64) error {
	if p.finalized {
		return fmt.Errorf("%w: update of finalized candle (t=%d)", ErrInvalidState, p.closeTime)
	}
	if high < 0 || low < 0 || close < 0 || volume < 0 {
		return fmt.Errorf("%w: negative tick value", ErrInvalidCandlestick)
	}
	if high > p.high {
		p.high = high
	}
	if low < p.low {
		p.low = low
	}
	p.close = close
	p.volume = volume
	return nil
}

// Finalize seals the bar and returns its immutable form, optionally smoothed
// against the previous finalized bar. Calling it a second time is an error.
func (p *PendingCandle) Finalize(prev *Candlestick, heikinAshi bool) (*Candlestick, error) {
	if p.finalized {
		return nil, fmt.Errorf("%w: candle already finalized (t=%d)", ErrInvalidState, p.closeTime)
	}
	p.finalized = true
	c, err := NewCandlestick(p.closeTime, p.open, p.high, p.low, p.close, p.volume)
	if err != nil {
		return nil, err
	}
	if heikinAshi {
		c = c.ToHeikinAshi(prev)
	}
	return c, nil
}

func (p *PendingCandle) CloseTime() int64 { return p.closeTime }
func (p *PendingCandle) Close() float64 { return p.close }
func (p *PendingCandle) Finalized() bool { return p.finalized }
