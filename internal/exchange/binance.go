package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/models"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Binance implements MarketData and the account.Executor order surface
// against the Binance spot API. REST goes through the official client, the
// kline stream is a direct websocket connection.
type Binance struct {
	client    *binance.Client
	wsBaseURL string
	connected atomic.Bool
	log       *zap.SugaredLogger
}

// NewBinance builds a client. Empty keys are fine for public endpoints
// (historical bars, stream), order placement requires real ones.
func NewBinance(apiKey, secretKey, wsBaseURL string, testnet bool) *Binance {
	binance.UseTestnet = testnet
	return &Binance{
		client:    binance.NewClient(apiKey, secretKey),
		wsBaseURL: strings.TrimRight(wsBaseURL, "/"),
		log:       logger.S(),
	}
}

// Connected reports whether the market stream is currently up.
func (b *Binance) Connected() bool { return b.connected.Load() }

// HistoricalCandles fetches the latest finalized bars, oldest first.
func (b *Binance) HistoricalCandles(ctx context.Context, symbol, interval string, limit int) ([]models.CandleTick, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}

	ticks := make([]models.CandleTick, 0, len(klines))
	for _, k := range klines {
		tick, err := klineToTick(k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume, true)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}
	// The last bar of a klines response is still forming.
	if len(ticks) > 0 {
		ticks = ticks[:len(ticks)-1]
	}
	return ticks, nil
}

// klineEvent is the wire shape of one kline stream message.
type klineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		IsFinal   bool   `json:"x"`
	} `json:"k"`
}

// SubscribeCandles connects to the kline stream and pumps events into
// onTick until Close is called or the connection drops. The read loop keeps
// the connection alive with pings and a pong deadline.
func (b *Binance) SubscribeCandles(ctx context.Context, symbol, interval string, onTick func(models.CandleTick)) (*Subscription, error) {
	wsURL := fmt.Sprintf("%s/ws/%s@kline_%s", b.wsBaseURL, strings.ToLower(symbol), interval)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	sub := NewSubscription(func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})

	b.connected.Store(true)
	b.log.Infow("market stream connected", "url", wsURL)

	go b.readLoop(conn, sub, onTick)
	return sub, nil
}

func (b *Binance) readLoop(conn *websocket.Conn, sub *Subscription, onTick func(models.CandleTick)) {
	defer b.connected.Store(false)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-sub.closeCh:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if sub.closed() {
				return // deliberate shutdown, not a failure
			}
			sub.Fail(fmt.Errorf("market stream read: %w", err))
			return
		}

		var ev klineEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			b.log.Warnw("unparseable stream message", "err", err)
			continue
		}
		if ev.EventType != "kline" {
			continue
		}

		tick, err := klineToTick(ev.Kline.OpenTime, ev.Kline.CloseTime,
			ev.Kline.Open, ev.Kline.High, ev.Kline.Low, ev.Kline.Close, ev.Kline.Volume, ev.Kline.IsFinal)
		if err != nil {
			b.log.Warnw("bad kline event", "err", err)
			continue
		}
		onTick(tick)
	}
}

// --- order surface for live accounts ---

// PlaceLimitOrder submits an immediate-or-cancel limit order so an unfilled
// order expires instead of resting on the book.
func (b *Binance) PlaceLimitOrder(symbol string, side models.Side, quantity, price float64, clientOrderID string) (*models.OrderResult, error) {
	res, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeIOC).
		Quantity(formatFloat(quantity)).
		Price(formatFloat(price)).
		NewClientOrderID(clientOrderID).
		Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("limit order: %w", err)
	}
	return orderResult(res), nil
}

// PlaceMarketOrder submits a market order.
func (b *Binance) PlaceMarketOrder(symbol string, side models.Side, quantity float64, clientOrderID string) (*models.OrderResult, error) {
	res, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(formatFloat(quantity)).
		NewClientOrderID(clientOrderID).
		Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("market order: %w", err)
	}
	return orderResult(res), nil
}

// AssetBalance returns the free balance of one asset.
func (b *Binance) AssetBalance(ctx context.Context, asset string) (float64, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	for _, bal := range acct.Balances {
		if bal.Asset == asset {
			return strconv.ParseFloat(bal.Free, 64)
		}
	}
	return 0, fmt.Errorf("no balance entry for %s", asset)
}

// SymbolInfo fetches the pair's lot size and notional filters.
func (b *Binance) SymbolInfo(symbol string) (*models.SymbolInfo, error) {
	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		out := &models.SymbolInfo{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}
		if lot := s.LotSizeFilter(); lot != nil {
			out.Lot.StepSize, _ = strconv.ParseFloat(lot.StepSize, 64)
			out.Lot.MinQty, _ = strconv.ParseFloat(lot.MinQuantity, 64)
		}
		if notional := s.NotionalFilter(); notional != nil {
			out.Lot.MinNotional, _ = strconv.ParseFloat(notional.MinNotional, 64)
		}
		return out, nil
	}
	return nil, fmt.Errorf("symbol %s not listed", symbol)
}

func orderResult(res *binance.CreateOrderResponse) *models.OrderResult {
	executed, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(res.Price, 64)
	if len(res.Fills) > 0 {
		var qty, quote float64
		for _, f := range res.Fills {
			fq, _ := strconv.ParseFloat(f.Quantity, 64)
			fp, _ := strconv.ParseFloat(f.Price, 64)
			qty += fq
			quote += fq * fp
		}
		if qty > 0 {
			avg = quote / qty
		}
	}
	return &models.OrderResult{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Status:        models.OrderStatus(res.Status),
		ExecutedQty:   executed,
		AvgPrice:      avg,
	}
}

func klineToTick(openTime, closeTime int64, open, high, low, close, volume string, isFinal bool) (models.CandleTick, error) {
	var tick models.CandleTick
	var err error
	if tick.Open, err = strconv.ParseFloat(open, 64); err != nil {
		return tick, fmt.Errorf("parse open: %w", err)
	}
	if tick.High, err = strconv.ParseFloat(high, 64); err != nil {
		return tick, fmt.Errorf("parse high: %w", err)
	}
	if tick.Low, err = strconv.ParseFloat(low, 64); err != nil {
		return tick, fmt.Errorf("parse low: %w", err)
	}
	if tick.Close, err = strconv.ParseFloat(close, 64); err != nil {
		return tick, fmt.Errorf("parse close: %w", err)
	}
	vol, err := strconv.ParseFloat(volume, 64)
	if err != nil {
		return tick, fmt.Errorf("parse volume: %w", err)
	}
	tick.OpenTime = openTime
	tick.CloseTime = closeTime
	tick.Volume = int64(vol)
	tick.IsFinal = isFinal
	return tick, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
