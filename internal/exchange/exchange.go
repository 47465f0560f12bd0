// Package exchange talks to the market: historical bars and the live kline
// stream for all modes, plus order placement for live trading.
package exchange

import (
	"context"

	"stratx-trader-go/internal/models"
)

// MarketData supplies bars for warmup and the real-time tick stream.
type MarketData interface {
	// HistoricalCandles returns the most recent finalized bars, oldest first.
	HistoricalCandles(ctx context.Context, symbol, interval string, limit int) ([]models.CandleTick, error)

	// SubscribeCandles opens the kline stream and invokes onTick for every
	// event until the subscription closes or the connection drops.
	SubscribeCandles(ctx context.Context, symbol, interval string, onTick func(models.CandleTick)) (*Subscription, error)
}

// Subscription is one open market stream. Err delivers the terminal error of
// the read loop; Close tears the stream down.
type Subscription struct {
	errCh   chan error
	closeCh chan struct{}
	closeFn func()
}

// NewSubscription wraps a stream teardown function. MarketData
// implementations create one per stream and report the terminal read error
// through Fail.
func NewSubscription(closeFn func()) *Subscription {
	return &Subscription{
		errCh:   make(chan error, 1),
		closeCh: make(chan struct{}),
		closeFn: closeFn,
	}
}

// Err yields the error that ended the stream. A graceful Close yields
// nothing.
func (s *Subscription) Err() <-chan error { return s.errCh }

// Close stops the read loop and closes the connection. Safe to call more
// than once.
func (s *Subscription) Close() {
	select {
	case <-s.closeCh:
		return
	default:
		close(s.closeCh)
	}
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Fail records the error that ended the stream. Only the first error is
// kept.
func (s *Subscription) Fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Subscription) closed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}
