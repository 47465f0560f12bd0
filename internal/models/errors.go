package models

import "errors"

// Sentinel errors shared across the engine. Callers match them with errors.Is
// after layers have wrapped them with context.
var (
	// ErrInvalidCandlestick marks candle construction or update input that
	// violates basic sanity (negative prices, volume or timestamps).
	ErrInvalidCandlestick = errors.New("invalid candlestick")

	// ErrInvalidState marks an operation applied to an object in the wrong
	// lifecycle phase, e.g. finalizing a candle twice or closing a closed trade.
	ErrInvalidState = errors.New("invalid state")

	// ErrDuplicateEntry is returned by PriceHistory.Add for a bar whose close
	// time is already recorded.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInsufficientFunds is returned when a trade cannot be funded from the
	// account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOrderRejected is returned when the exchange rejects an order outright.
	ErrOrderRejected = errors.New("order rejected")

	// ErrOrderRetryExhausted is returned after the order retry ladder ran out
	// of attempts without a fill.
	ErrOrderRetryExhausted = errors.New("order retries exhausted")

	// ErrNotConnected is returned when a live operation requires an exchange
	// connection that is currently down.
	ErrNotConnected = errors.New("exchange not connected")
)
