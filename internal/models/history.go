package models

import "fmt"

// PriceHistory is a bounded, insertion-ordered window of finalized bars.
// When the capacity is reached the oldest bar is evicted. Bars are deduplicated
// by close time so replayed stream events cannot double-count.
type PriceHistory struct {
	capacity int
	candles  []*Candlestick
	byTime   map[int64]*Candlestick
}

const DefaultHistorySize = 200

// NewPriceHistory returns an empty history holding at most capacity bars.
// A capacity below one falls back to DefaultHistorySize.
func NewPriceHistory(capacity int) *PriceHistory {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &PriceHistory{
		capacity: capacity,
		candles:  make([]*Candlestick, 0, capacity),
		byTime:   make(map[int64]*Candlestick, capacity),
	}
}

// Add appends a bar, evicting the oldest when full. A bar whose close time is
// already present is refused with ErrDuplicateEntry.
func (h *PriceHistory) Add(c *Candlestick) error {
	if c == nil {
		return fmt.Errorf("%w: nil candlestick", ErrInvalidCandlestick)
	}
	if _, ok := h.byTime[c.CloseTime()]; ok {
		return fmt.Errorf("%w: candle at %d already recorded", ErrDuplicateEntry, c.CloseTime())
	}
	if len(h.candles) == h.capacity {
		evicted := h.candles[0]
		h.candles = h.candles[1:]
		delete(h.byTime, evicted.CloseTime())
	}
	h.candles = append(h.candles, c)
	h.byTime[c.CloseTime()] = c
	return nil
}

func (h *PriceHistory) Len() int { return len(h.candles) }
func (h *PriceHistory) Capacity() int { return h.capacity }

// At returns the i-th bar in insertion order (0 is the oldest).
func (h *PriceHistory) At(i int) *Candlestick { return h.candles[i] }

// Latest returns the most recently added bar, or false on an empty history.
func (h *PriceHistory) Latest() (*Candlestick, bool) {
	if len(h.candles) == 0 {
		return nil, false
	}
	return h.candles[len(h.candles)-1], true
}

// ByCloseTime looks a bar up by its close timestamp.
func (h *PriceHistory) ByCloseTime(t int64) (*Candlestick, bool) {
	c, ok := h.byTime[t]
	return c, ok
}

// Candles returns the bars oldest-first. The returned slice is shared, callers
// must not modify it.
func (h *PriceHistory) Candles() []*Candlestick { return h.candles }
