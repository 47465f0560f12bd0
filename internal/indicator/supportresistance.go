package indicator

import (
	"fmt"
	"math"

	"stratx-trader-go/internal/models"
)

// SupportResistance clusters close prices into horizontal levels. It is an
// observational indicator: it never votes, it only exposes the levels it has
// found for logging and inspection.
type SupportResistance struct {
	tag
	sensitivity float64
	closes      []float64
	levels      []float64
}

// minTouches is how many closes must sit inside a sensitivity band before it
// counts as a level.
const minTouches = 3

func NewSupportResistance(sensitivity float64) *SupportResistance {
	if sensitivity <= 0 {
		sensitivity = 0.005
	}
	return &SupportResistance{
		tag:         tag{name: fmt.Sprintf("SupportResistance(%.3f)", sensitivity)},
		sensitivity: sensitivity,
	}
}

func (s *SupportResistance) Update(c *models.Candlestick) {
	s.closes = append(s.closes, c.Close())
	s.rebuildLevels()
}

func (s *SupportResistance) Signal() models.Signal { return models.SignalHold }

// Levels returns the detected levels, unordered.
func (s *SupportResistance) Levels() []float64 { return s.levels }

func (s *SupportResistance) rebuildLevels() {
	s.levels = s.levels[:0]
	for _, candidate := range s.closes {
		if s.nearLevel(candidate) {
			continue
		}
		touches := 0
		for _, price := range s.closes {
			if relativeDistance(candidate, price) <= s.sensitivity {
				touches++
			}
		}
		if touches >= minTouches {
			s.levels = append(s.levels, candidate)
		}
	}
}

func (s *SupportResistance) nearLevel(price float64) bool {
	for _, level := range s.levels {
		if relativeDistance(level, price) <= s.sensitivity {
			return true
		}
	}
	return false
}

func relativeDistance(a, b float64) float64 {
	if a == 0 {
		return math.Abs(b)
	}
	return math.Abs(a-b) / math.Abs(a)
}
