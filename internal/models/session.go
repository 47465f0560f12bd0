package models

import "time"

// SessionState is the persisted snapshot of a simulation or live session,
// written on shutdown and restored on the next start so open positions and
// the balance mirror survive restarts.
type SessionState struct {
	Symbol         string          `json:"symbol"`
	Mode           string          `json:"mode"`
	Balance        float64         `json:"balance"`
	OpenPositions  []PositionState `json:"open_positions"`
	LastUpdateTime time.Time       `json:"last_update_time"`
}

// PositionState is the durable subset of an open trade.
type PositionState struct {
	EntryTime  int64   `json:"entry_time"` // epoch milliseconds
	EntryPrice float64 `json:"entry_price"`
	Amount     float64 `json:"amount"`     // base asset quantity
	AmountUSD  float64 `json:"amount_usd"` // quote spent after the entry fee
}
