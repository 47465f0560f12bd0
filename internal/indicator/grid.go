package indicator

import (
	"fmt"
	"math"

	"stratx-trader-go/internal/models"
)

// Grid anchors a baseline at the first close and votes on how many grid
// lines the price has jumped since: above the baseline buys, below sells.
// Once the distance reaches the rebase threshold the baseline is re-anchored
// at the current close.
type Grid struct {
	tag
	gridSize        float64
	rebaseThreshold int
	baseline        float64
	anchored        bool
	signal          models.Signal
}

func NewGrid(gridSize float64, rebaseThreshold int) *Grid {
	if rebaseThreshold < 1 {
		rebaseThreshold = 3
	}
	return &Grid{
		tag:             tag{name: fmt.Sprintf("Grid(%.4f)", gridSize)},
		gridSize:        gridSize,
		rebaseThreshold: rebaseThreshold,
	}
}

func (g *Grid) Update(c *models.Candlestick) {
	if !g.anchored {
		g.baseline = c.Close()
		g.anchored = true
		g.signal = models.SignalHold
		return
	}

	jumps := int(math.Floor((c.Close() - g.baseline) / g.gridSize))
	switch {
	case jumps > 0:
		g.signal = models.SignalBuy
	case jumps < 0:
		g.signal = models.SignalSell
	default:
		g.signal = models.SignalHold
	}

	if jumps >= g.rebaseThreshold || -jumps >= g.rebaseThreshold {
		g.baseline = c.Close()
	}
}

func (g *Grid) Signal() models.Signal { return g.signal }

// Baseline exposes the current anchor price, mainly for diagnostics.
func (g *Grid) Baseline() float64 { return g.baseline }
