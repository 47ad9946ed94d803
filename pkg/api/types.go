package api

import (
	"github.com/uhyunpark/behype/pkg/history"
	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/storage"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// QuotesResponse is the reconciled quote table.
type QuotesResponse struct {
	Quotes    []market.AssetQuote `json:"quotes"`
	UpdatedAt int64               `json:"updatedAt"` // Unix milliseconds, 0 if restored from disk
}

// AssetInfo is one registered spot pair.
type AssetInfo struct {
	ID           string   `json:"id"`    // e.g. "@142"
	Index        uint32   `json:"index"` // numeric part of ID
	Name         string   `json:"name"`  // e.g. "BTC/USDC"
	Base         string   `json:"base"`
	Quote        string   `json:"quote"`
	Aliases      []string `json:"aliases,omitempty"`
	TickSize     string   `json:"tickSize"`
	LotPrecision int32    `json:"lotPrecision"`
	Denomination string   `json:"denomination,omitempty"`
}

func assetInfo(a market.AssetConfig) AssetInfo {
	return AssetInfo{
		ID:           a.ID,
		Index:        a.Index,
		Name:         a.Name,
		Base:         a.Base,
		Quote:        a.Quote,
		Aliases:      a.BaseAliases,
		TickSize:     a.TickSize.String(),
		LotPrecision: a.LotPrecision,
		Denomination: string(a.Denomination),
	}
}

// BalanceInfo is one spot token balance.
type BalanceInfo struct {
	Coin      string `json:"coin"`
	Total     string `json:"total"`
	Hold      string `json:"hold"`
	Available string `json:"available"`
}

// BalancesResponse lists the wallet's balances.
type BalancesResponse struct {
	Address  string        `json:"address"`
	Balances []BalanceInfo `json:"balances"`
}

// FillsResponse is the wallet's trade history window.
type FillsResponse struct {
	DaysBack int                  `json:"daysBack"`
	Fills    []history.FillRecord `json:"fills"`
}

// OpenOrdersResponse lists resting orders.
type OpenOrdersResponse struct {
	Orders []history.OpenOrderRecord `json:"orders"`
}

// JournalResponse lists recent submissions recorded locally.
type JournalResponse struct {
	Entries []storage.Entry `json:"entries"`
}

// CandlesResponse is a chart series.
type CandlesResponse struct {
	Asset    string          `json:"asset"`
	Interval string          `json:"interval"`
	Candles  []market.Candle `json:"candles"`
}

// ==============================
// REST Request Types
// ==============================

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	Asset   string `json:"asset" validate:"required,startswith=@"`
	OrderID uint64 `json:"orderId" validate:"required"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	Status     string  `json:"status"` // "filled" or "resting"
	EntryID    string  `json:"entryId"`
	OrderID    *uint64 `json:"orderId,omitempty"`
	Price      string  `json:"price"` // normalized wire price
	Size       string  `json:"size"`  // normalized wire size
	FilledSize *string `json:"filledSize,omitempty"`
	AvgPrice   *string `json:"avgPrice,omitempty"`
	Message    string  `json:"message"`
}

// CancelOrderResponse is the response from a cancel.
type CancelOrderResponse struct {
	Status  string `json:"status"`
	OrderID uint64 `json:"orderId"`
	Message string `json:"message"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["quotes"]
}

// QuotesUpdate is broadcast after every successful quote refresh.
type QuotesUpdate struct {
	Type      string              `json:"type"` // "quotes"
	Quotes    []market.AssetQuote `json:"quotes"`
	Timestamp int64               `json:"timestamp"`
}

// OrderUpdate is broadcast when a submission from this server settles.
type OrderUpdate struct {
	Type    string         `json:"type"` // "order"
	Asset   string         `json:"asset"`
	Side    order.Side     `json:"side"`
	OrderID *uint64        `json:"orderId,omitempty"`
	Status  string         `json:"status"`
	Request *order.Request `json:"request,omitempty"`
}
