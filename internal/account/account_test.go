package account

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratx-trader-go/internal/models"
)

// mockExecutor scripts order outcomes per attempt.
type mockExecutor struct {
	connected bool
	info      *models.SymbolInfo
	statuses  []models.OrderStatus // consumed one per placement
	placeErr  error

	limitCalls  int
	marketCalls int
	lastQty     float64
	clientIDs   []string
}

func newMockExecutor(statuses ...models.OrderStatus) *mockExecutor {
	return &mockExecutor{
		connected: true,
		info: &models.SymbolInfo{
			Symbol:     "BTCUSDT",
			BaseAsset:  "BTC",
			QuoteAsset: "USDT",
			Lot:        models.LotSize{StepSize: 0.0001, MinQty: 0.0001, MinNotional: 5},
		},
		statuses: statuses,
	}
}

func (m *mockExecutor) next(qty float64, clientID string) (*models.OrderResult, error) {
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.lastQty = qty
	m.clientIDs = append(m.clientIDs, clientID)
	status := models.OrderStatusFilled
	if len(m.statuses) > 0 {
		status = m.statuses[0]
		m.statuses = m.statuses[1:]
	}
	return &models.OrderResult{OrderID: 1, ClientOrderID: clientID, Status: status, ExecutedQty: qty, AvgPrice: 100}, nil
}

func (m *mockExecutor) PlaceLimitOrder(_ string, _ models.Side, qty, _ float64, clientID string) (*models.OrderResult, error) {
	m.limitCalls++
	return m.next(qty, clientID)
}

func (m *mockExecutor) PlaceMarketOrder(_ string, _ models.Side, qty float64, clientID string) (*models.OrderResult, error) {
	m.marketCalls++
	return m.next(qty, clientID)
}

func (m *mockExecutor) SymbolInfo(string) (*models.SymbolInfo, error) { return m.info, nil }
func (m *mockExecutor) Connected() bool { return m.connected }

func execConfig() ExecutionConfig {
	return ExecutionConfig{Symbol: "BTCUSDT", RetryAttempts: 3, RetryDelay: 0, MarketOrderOnRetry: 3}
}

func TestSimulatedRoundTripWithFees(t *testing.T) {
	// 0.1% fee on entry and exit: 100 -> buy 50 -> sell at +5.5%.
	a := New(100, 0.1)
	tr, err := NewTrade(50, 100, 1000, a.Fee())
	require.NoError(t, err)

	require.NoError(t, a.OpenTrade(tr, 100))
	assert.InDelta(t, 100-49.95, a.Balance(), 1e-9)
	assert.Equal(t, 1, a.OpenTradeCount())

	require.NoError(t, a.CloseTrade(tr, 105.5, 2000, ReasonTakeProfit))
	want := 100 - 49.95 + 49.95*1.055*0.999
	assert.InDelta(t, want, a.Balance(), 1e-9)
	assert.Equal(t, 0, a.OpenTradeCount())
	assert.Equal(t, ReasonTakeProfit, tr.CloseReason())
}

func TestOpenTradeInsufficientFunds(t *testing.T) {
	a := New(10, 0)
	tr, err := NewTrade(50, 100, 1000, 0)
	require.NoError(t, err)

	err = a.OpenTrade(tr, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.InDelta(t, 10, a.Balance(), 1e-9, "balance untouched")
	assert.Empty(t, a.Trades())
}

func TestCloseTradeTwiceFails(t *testing.T) {
	a := New(100, 0)
	tr, err := NewTrade(50, 100, 1000, 0)
	require.NoError(t, err)
	require.NoError(t, a.OpenTrade(tr, 100))
	require.NoError(t, a.CloseTrade(tr, 110, 2000, ReasonTakeProfit))

	err = a.CloseTrade(tr, 120, 3000, ReasonStopLoss)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestLiveOrderFillsFirstAttempt(t *testing.T) {
	exec := newMockExecutor(models.OrderStatusFilled)
	a := NewLive(1000, exec, execConfig())
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	require.NoError(t, a.OpenTrade(tr, 100))
	assert.Equal(t, 1, exec.limitCalls)
	assert.Equal(t, 0, exec.marketCalls)
	assert.InDelta(t, 5.0, exec.lastQty, 1e-9)
	require.Len(t, exec.clientIDs, 1)
	assert.NotEmpty(t, exec.clientIDs[0])
	assert.Equal(t, 1, a.OpenTradeCount())
}

func TestLiveOrderRetriesExpiredThenMarketFills(t *testing.T) {
	exec := newMockExecutor(models.OrderStatusExpired, models.OrderStatusExpired, models.OrderStatusFilled)
	a := NewLive(1000, exec, execConfig())
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	require.NoError(t, a.OpenTrade(tr, 100))
	assert.Equal(t, 2, exec.limitCalls, "two IOC limit attempts expired")
	assert.Equal(t, 1, exec.marketCalls, "third attempt switched to market")
	assert.Len(t, exec.clientIDs, 3)
	assert.NotEqual(t, exec.clientIDs[0], exec.clientIDs[1], "fresh client ID per attempt")
}

func TestLiveOrderRejectedClosesTrade(t *testing.T) {
	exec := newMockExecutor(models.OrderStatusRejected)
	a := NewLive(1000, exec, execConfig())
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	err = a.OpenTrade(tr, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrOrderRejected)
	assert.False(t, tr.IsOpen())
	assert.Equal(t, ReasonOrderRejected, tr.CloseReason())
	assert.Equal(t, 0, a.OpenTradeCount())
	assert.InDelta(t, 1000, a.Balance(), 1e-9, "no fill, no debit")
	assert.Len(t, a.Trades(), 1, "failed entry stays on the ledger")
}

func TestLiveOrderExhaustsRetries(t *testing.T) {
	cfg := execConfig()
	cfg.MarketOrderOnRetry = 0 // stay on limit orders
	exec := newMockExecutor(models.OrderStatusExpired, models.OrderStatusExpired, models.OrderStatusExpired)
	a := NewLive(1000, exec, cfg)
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	err = a.OpenTrade(tr, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrOrderRetryExhausted)
	assert.Equal(t, 3, exec.limitCalls)
	assert.False(t, tr.IsOpen())
	assert.Equal(t, ReasonOrderFailed, tr.CloseReason())
}

func TestLiveOrderTransportErrorClosesTrade(t *testing.T) {
	exec := newMockExecutor()
	exec.placeErr = errors.New("connection reset")
	a := NewLive(1000, exec, execConfig())
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	err = a.OpenTrade(tr, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrOrderRetryExhausted)
	assert.Equal(t, ReasonOrderFailed, tr.CloseReason())
}

func TestLiveOrderRequiresConnection(t *testing.T) {
	exec := newMockExecutor()
	exec.connected = false
	a := NewLive(1000, exec, execConfig())
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	err = a.OpenTrade(tr, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotConnected)
	assert.True(t, tr.IsOpen(), "nothing was placed, trade not sealed")
	assert.Empty(t, a.Trades())
}

func TestLiveOrderBelowExchangeMinimumAborts(t *testing.T) {
	exec := newMockExecutor()
	exec.info.Lot.MinNotional = 1000
	a := NewLive(1000, exec, execConfig())
	tr, err := NewTrade(500, 100, 1000, 0)
	require.NoError(t, err)

	err = a.OpenTrade(tr, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Equal(t, 0, exec.limitCalls, "no order placed")
	assert.InDelta(t, 1000, a.Balance(), 1e-9)
}

func TestLiveQuantitySnapsToStep(t *testing.T) {
	exec := newMockExecutor(models.OrderStatusFilled)
	a := NewLive(1000, exec, execConfig())
	// 333.337 / 100 = 3.33337 coin, floored to the 0.0001 step.
	tr, err := NewTrade(333.337, 100, 1000, 0)
	require.NoError(t, err)

	require.NoError(t, a.OpenTrade(tr, 100))
	assert.InDelta(t, 3.3333, exec.lastQty, 1e-9)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := New(100, 0)
	tr, err := NewTrade(40, 100, 1000, 0)
	require.NoError(t, err)
	require.NoError(t, a.OpenTrade(tr, 100))

	snap := a.Snapshot()
	require.Len(t, snap, 1)

	b := New(0, 0)
	b.SetBalance(a.Balance())
	b.RestorePositions(snap)
	assert.Equal(t, 1, b.OpenTradeCount())
	restored := b.OpenTrades()[0]
	assert.Equal(t, tr.EntryPrice(), restored.EntryPrice())
	assert.InDelta(t, tr.Amount(), restored.Amount(), 1e-12)
	assert.InDelta(t, a.Balance(), b.Balance(), 1e-12)
}
