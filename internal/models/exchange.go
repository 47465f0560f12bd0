package models

// CandleTick is one kline stream event. IsFinal marks the last update of an
// interval, i.e. the tick that closes the bar.
type CandleTick struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	IsFinal   bool
}

// LotSize carries the exchange's quantity constraints for a symbol.
type LotSize struct {
	StepSize    float64
	MinQty      float64
	MinNotional float64
}

// SymbolInfo describes a tradable pair and its filters.
type SymbolInfo struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Lot        LotSize
}

// OrderStatus mirrors the exchange order state strings.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusExpired  OrderStatus = "EXPIRED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusPartial  OrderStatus = "PARTIALLY_FILLED"
)

// OrderResult is the normalized outcome of an order placement.
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Status        OrderStatus
	ExecutedQty   float64
	AvgPrice      float64
}
