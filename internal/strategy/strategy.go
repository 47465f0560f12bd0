// Package strategy aggregates indicator votes into trade decisions and
// applies the position sizing rules.
package strategy

import (
	"math"

	"go.uber.org/zap"

	"stratx-trader-go/internal/indicator"
	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/models"
)

// Portfolio is the account view the strategy needs for its entry guards.
type Portfolio interface {
	Balance() float64
	OpenTradeCount() int
}

// Strategy owns a set of indicators and the parameters controlling how their
// votes become entries and exits.
type Strategy struct {
	name       string
	params     models.StrategyParams
	indicators []indicator.Indicator
	portfolio  Portfolio
	log        *zap.SugaredLogger
}

// New wires the indicators to the parameter set. Indicators named in
// RequiredForBuy/RequiredForSell get their requirement flags set here.
func New(name string, params models.StrategyParams, portfolio Portfolio, indicators ...indicator.Indicator) *Strategy {
	s := &Strategy{
		name:       name,
		params:     params,
		indicators: indicators,
		portfolio:  portfolio,
		log:        logger.S(),
	}
	for _, required := range params.RequiredForBuy {
		for _, ind := range s.indicators {
			if ind.Name() == required {
				ind.SetRequiredForBuy(true)
			}
		}
	}
	for _, required := range params.RequiredForSell {
		for _, ind := range s.indicators {
			if ind.Name() == required {
				ind.SetRequiredForSell(true)
			}
		}
	}
	return s
}

func (s *Strategy) Name() string { return s.name }
func (s *Strategy) Params() models.StrategyParams { return s.params }
func (s *Strategy) Indicators() []indicator.Indicator { return s.indicators }

// OnCandleClose feeds a finalized bar to every indicator.
func (s *Strategy) OnCandleClose(c *models.Candlestick) {
	for _, ind := range s.indicators {
		ind.Update(c)
	}
}

// Signal tallies the current votes. With zero votes either way it holds;
// otherwise buys win ties unless the sell-greater guard is enabled.
func (s *Strategy) Signal() models.Signal {
	buy, sell := s.votes()
	if buy == 0 && sell == 0 {
		return models.SignalHold
	}
	if buy > sell || !s.params.DontBuyIfSellGreater {
		return models.SignalBuy
	}
	if sell > buy {
		return models.SignalSell
	}
	return models.SignalHold
}

// IsValidBuy applies every entry guard to a prospective trade of amountUSD.
func (s *Strategy) IsValidBuy(amountUSD float64) bool {
	buy, sell := s.votes()

	enough := buy >= s.params.MinBuySignals
	if s.params.MinBuySignals == -1 {
		enough = buy >= len(s.indicators)
	}
	if !enough {
		return false
	}
	if !s.buyRequirementsMet() {
		return false
	}
	if s.params.DontBuyIfSellGreater && sell > buy {
		return false
	}
	if s.portfolio.OpenTradeCount() >= s.params.MaxOpenTrades {
		return false
	}
	if s.portfolio.Balance() <= 0 {
		return false
	}
	return amountUSD >= s.params.MinUSDPerTrade
}

// IsValidSell reports whether indicator votes justify closing positions.
// There must be something to close; vote direction is already settled by
// Signal().
func (s *Strategy) IsValidSell() bool {
	if !s.params.SellBasedOnIndicators {
		return false
	}
	if s.portfolio.OpenTradeCount() == 0 {
		return false
	}
	_, sell := s.votes()

	enough := sell >= s.params.MinSellSignals
	if s.params.MinSellSignals == -1 {
		enough = sell >= len(s.indicators)
	}
	return enough && s.sellRequirementsMet()
}

// BuyAmount sizes the next entry from the current balance, clamped to the
// per-trade bounds. MaxUSDPerTrade of -1 leaves the top end open.
func (s *Strategy) BuyAmount() float64 {
	balance := s.portfolio.Balance()
	amount := s.params.MinUSDPerTrade
	if s.params.BuyAmountPercent > 0 {
		amount = balance * s.params.BuyAmountPercent / 100
	}

	floor := math.Min(s.params.MinUSDPerTrade, balance)
	if amount < floor {
		amount = floor
	}
	if s.params.MaxUSDPerTrade != -1 && amount > s.params.MaxUSDPerTrade {
		amount = s.params.MaxUSDPerTrade
	}
	return amount
}

func (s *Strategy) votes() (buy, sell int) {
	for _, ind := range s.indicators {
		switch ind.Signal() {
		case models.SignalBuy:
			buy++
		case models.SignalSell:
			sell++
		}
	}
	return buy, sell
}

func (s *Strategy) buyRequirementsMet() bool {
	for _, ind := range s.indicators {
		if ind.RequiredForBuy() && ind.Signal() != models.SignalBuy {
			s.log.Debugf("%s: required indicator %s did not vote buy", s.name, ind.Name())
			return false
		}
	}
	return true
}

func (s *Strategy) sellRequirementsMet() bool {
	for _, ind := range s.indicators {
		if ind.RequiredForSell() && ind.Signal() != models.SignalSell {
			return false
		}
	}
	return true
}
