// Package indicator holds the signal sources the strategy aggregates. Every
// indicator consumes finalized bars, owns whatever state it needs and votes
// BUY, SELL or HOLD on demand.
package indicator

import "stratx-trader-go/internal/models"

// Indicator is a named signal source. Update is called once per finalized
// bar; Signal may be read any number of times between updates.
type Indicator interface {
	Name() string
	Update(c *models.Candlestick)
	Signal() models.Signal

	// Requirement flags let the strategy demand a specific indicator's vote
	// before acting. They are set from config at wiring time.
	RequiredForBuy() bool
	RequiredForSell() bool
	SetRequiredForBuy(required bool)
	SetRequiredForSell(required bool)
}

// tag provides the naming and requirement plumbing shared by all indicators.
type tag struct {
	name    string
	reqBuy  bool
	reqSell bool
}

func (t *tag) Name() string { return t.name }
func (t *tag) RequiredForBuy() bool { return t.reqBuy }
func (t *tag) RequiredForSell() bool { return t.reqSell }
func (t *tag) SetRequiredForBuy(required bool) { t.reqBuy = required }
func (t *tag) SetRequiredForSell(required bool) { t.reqSell = required }
