package persistence

import "stratx-trader-go/internal/models"

// SessionRepository persists the trading session snapshot between runs.
// It abstracts the storage engine from the trading engine.
type SessionRepository interface {
	// SaveState atomically replaces the stored session snapshot.
	SaveState(state *models.SessionState) error

	// LoadState returns the stored snapshot, or (nil, nil) when none exists.
	LoadState() (*models.SessionState, error)

	// Close releases the underlying database.
	Close() error
}
