package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratx-trader-go/internal/models"
)

var candleTime int64

func candle(t *testing.T, open, high, low, close float64) *models.Candlestick {
	t.Helper()
	candleTime += 60_000
	c, err := models.NewCandlestick(candleTime, open, high, low, close, 100)
	require.NoError(t, err)
	return c
}

func flat(t *testing.T, price float64) *models.Candlestick {
	return candle(t, price, price, price, price)
}

func TestEMAHoldsUntilWindowFull(t *testing.T) {
	ema := NewEMA(3)
	ema.Update(flat(t, 10))
	ema.Update(flat(t, 11))
	assert.Equal(t, models.SignalHold, ema.Signal())
}

func TestEMASignalsDirection(t *testing.T) {
	ema := NewEMA(3)
	// Rising closes keep the latest close above the average.
	for _, p := range []float64{10, 11, 12, 14} {
		ema.Update(flat(t, p))
	}
	assert.Equal(t, models.SignalBuy, ema.Signal())

	ema = NewEMA(3)
	for _, p := range []float64{14, 12, 11, 9} {
		ema.Update(flat(t, p))
	}
	assert.Equal(t, models.SignalSell, ema.Signal())
}

func TestEMAIgnoresReplayedBars(t *testing.T) {
	ema := NewEMA(2)
	c := flat(t, 10)
	ema.Update(c)
	ema.Update(c)
	// One distinct bar recorded, window of two still warming up.
	assert.Equal(t, models.SignalHold, ema.Signal())
}

func TestWMASignalsDirection(t *testing.T) {
	wma := NewWMA(3)
	for _, p := range []float64{10, 11, 13} {
		wma.Update(flat(t, p))
	}
	// Weighted average of 10,11,13 is below the last close.
	assert.Equal(t, models.SignalBuy, wma.Signal())

	wma = NewWMA(3)
	for _, p := range []float64{13, 11, 9} {
		wma.Update(flat(t, p))
	}
	assert.Equal(t, models.SignalSell, wma.Signal())
}

func TestRSIBounds(t *testing.T) {
	rsi := NewRSI(3, 70, 30)

	// All gains: index pegs at 100 and votes sell.
	for _, c := range []*models.Candlestick{
		candle(t, 10, 11, 10, 11),
		candle(t, 11, 12, 11, 12),
		candle(t, 12, 13, 12, 13),
	} {
		rsi.Update(c)
	}
	v, ok := rsi.Value()
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
	assert.Equal(t, models.SignalSell, rsi.Signal())
}

func TestRSIAllLossesVotesBuy(t *testing.T) {
	rsi := NewRSI(3, 70, 30)
	for _, c := range []*models.Candlestick{
		candle(t, 11, 11, 10, 10),
		candle(t, 10, 10, 9, 9),
		candle(t, 9, 9, 8, 8),
	} {
		rsi.Update(c)
	}
	v, ok := rsi.Value()
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, models.SignalBuy, rsi.Signal())
}

func TestRSIHoldsExactlyAtThresholds(t *testing.T) {
	rsi := NewRSI(3, 70, 30)
	// Deltas +7, -3 and 0 put the index exactly on the overbought line.
	rsi.Update(candle(t, 10, 17, 10, 17))
	rsi.Update(candle(t, 17, 17, 14, 14))
	rsi.Update(flat(t, 14))

	v, ok := rsi.Value()
	require.True(t, ok)
	assert.InDelta(t, 70.0, v, 1e-9)
	assert.Equal(t, models.SignalHold, rsi.Signal())
}

func TestRSIFlatWindowHolds(t *testing.T) {
	rsi := NewRSI(3, 70, 30)
	for i := 0; i < 3; i++ {
		rsi.Update(flat(t, 10))
	}
	_, ok := rsi.Value()
	assert.False(t, ok)
	assert.Equal(t, models.SignalHold, rsi.Signal())
}

func TestHeikinAshiTrendNeedsTwoBullishBars(t *testing.T) {
	ha := NewHeikinAshiTrend()

	ha.Update(candle(t, 10, 11, 10, 10.5)) // bullish, no lower wick
	assert.Equal(t, models.SignalHold, ha.Signal())

	ha.Update(candle(t, 10.5, 11.5, 10.5, 11)) // second bullish confirms
	assert.Equal(t, models.SignalBuy, ha.Signal())
}

func TestHeikinAshiTrendSellsOnSingleBearishBar(t *testing.T) {
	ha := NewHeikinAshiTrend()
	ha.Update(candle(t, 10, 11, 10, 10.5))
	ha.Update(candle(t, 11, 11, 10, 10.2)) // bearish, no upper wick
	assert.Equal(t, models.SignalSell, ha.Signal())
}

func TestGridVotesByJumpDirection(t *testing.T) {
	grid := NewGrid(1.0, 3)

	grid.Update(flat(t, 100)) // anchors baseline
	assert.Equal(t, models.SignalHold, grid.Signal())

	grid.Update(flat(t, 101.5))
	assert.Equal(t, models.SignalBuy, grid.Signal())

	grid.Update(flat(t, 98.5))
	assert.Equal(t, models.SignalSell, grid.Signal())
}

func TestGridRebasesAfterThreshold(t *testing.T) {
	grid := NewGrid(1.0, 3)
	grid.Update(flat(t, 100))
	grid.Update(flat(t, 104)) // 4 jumps up, past the threshold
	assert.Equal(t, models.SignalBuy, grid.Signal())
	assert.Equal(t, 104.0, grid.Baseline())

	grid.Update(flat(t, 103.5))
	assert.Equal(t, models.SignalSell, grid.Signal(), "votes relative to the new baseline")
}

func TestSupportResistanceNeverVotes(t *testing.T) {
	sr := NewSupportResistance(0.01)
	for _, p := range []float64{100, 100.2, 99.9, 100.1, 50} {
		sr.Update(flat(t, p))
	}
	assert.Equal(t, models.SignalHold, sr.Signal())
	require.NotEmpty(t, sr.Levels())
	assert.InDelta(t, 100, sr.Levels()[0], 1.0)
}

func TestRequirementFlags(t *testing.T) {
	ema := NewEMA(5)
	assert.False(t, ema.RequiredForBuy())
	ema.SetRequiredForBuy(true)
	ema.SetRequiredForSell(true)
	assert.True(t, ema.RequiredForBuy())
	assert.True(t, ema.RequiredForSell())
	assert.Equal(t, "EMA(5)", ema.Name())
}
