package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/util"
)

// Canned identifiers returned in test mode.
const (
	MockBuyOrderID  uint64 = 130243366999
	MockSellOrderID uint64 = 130243367000
)

// Canned rejection messages, matched by the UI's error handling.
const (
	MsgInsufficientBalance = "Insufficient balance"
	MsgTickSize            = "Price must be divisible by tick size"
	MsgNetworkTimeout      = "Network timeout - please try again"
)

var (
	mockLimit   = decimal.NewFromInt(1000)
	mockTimeout = decimal.NewFromInt(999)
)

// MockInfo serves fixed market data and a wallet history anchored to clock.
type MockInfo struct {
	Clock util.Clock
}

func NewMockInfo(clock util.Clock) *MockInfo {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &MockInfo{Clock: clock}
}

func (m *MockInfo) AllMids(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]string{
		"@142": "118225.0",
		"@143": "0.0325",
		"@151": "1.02",
		"@169": "2.45",
		"@999": "12.0",
	}, nil
}

func (m *MockInfo) SpotMeta(ctx context.Context) (market.SpotMeta, error) {
	if err := ctx.Err(); err != nil {
		return market.SpotMeta{}, err
	}
	return market.SpotMeta{
		Universe: []market.SpotPair{
			{Name: "@142", Tokens: []int{197, 0}, Index: 142},
			{Name: "@143", Tokens: []int{221, 0}, Index: 143},
		},
		Tokens: []market.SpotToken{
			{Name: "USDC", SzDecimals: 8, Index: 0},
			{Name: "UBTC", SzDecimals: 5, Index: 197},
			{Name: "UETH", SzDecimals: 4, Index: 221},
		},
	}, nil
}

func (m *MockInfo) TokenBalances(ctx context.Context, user string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(`{"balances":[
		{"coin":"USDC","token":0,"total":"5000.0","hold":"0.0"},
		{"coin":"UBTC","token":197,"total":"0.05","hold":"0.0"}
	]}`), nil
}

type mockFill struct {
	Coin          string `json:"coin"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Side          string `json:"side"`
	Time          uint64 `json:"time"`
	StartPosition string `json:"startPosition"`
	Dir           string `json:"dir"`
	ClosedPnl     string `json:"closedPnl"`
	Hash          string `json:"hash"`
	Oid           uint64 `json:"oid"`
	Crossed       bool   `json:"crossed"`
	Fee           string `json:"fee"`
	Tid           uint64 `json:"tid"`
	FeeToken      string `json:"feeToken"`
}

// UserFills returns the two canned fills (1h and 2h old) inside the window.
func (m *MockInfo) UserFills(ctx context.Context, user string, startMs, endMs uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.Clock.Now()
	all := []mockFill{
		{
			Coin: "@142", Px: "118225.0", Sz: "0.00009", Side: "B",
			Time: uint64(now.Add(-time.Hour).UnixMilli()),
			StartPosition: "0.0", Dir: "Buy", ClosedPnl: "0.0",
			Hash: "0x123456789abcdef", Oid: MockBuyOrderID, Crossed: true,
			Fee: "0.50", Tid: 1001, FeeToken: "USDC",
		},
		{
			Coin: "@142", Px: "118000.0", Sz: "0.00008", Side: "A",
			Time: uint64(now.Add(-2 * time.Hour).UnixMilli()),
			StartPosition: "0.00009", Dir: "Sell", ClosedPnl: "2.25",
			Hash: "0xfedcba987654321", Oid: MockSellOrderID, Crossed: true,
			Fee: "0.48", Tid: 1002, FeeToken: "USDC",
		},
	}

	out := make([]mockFill, 0, len(all))
	for _, f := range all {
		if f.Time >= startMs && (endMs == 0 || f.Time <= endMs) {
			out = append(out, f)
		}
	}
	return json.Marshal(out)
}

func (m *MockInfo) OpenOrders(ctx context.Context, user string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(`[]`), nil
}

// Candles returns a flat series around the canned BTC mid, one candle per
// interval, ending at endMs. At most 48 candles are produced.
func (m *MockInfo) Candles(ctx context.Context, coin, interval string, startMs, endMs uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf, err := market.ParseTimeframe(interval)
	if err != nil {
		return nil, err
	}
	step := uint64(tf.Duration().Milliseconds())
	if endMs < startMs+step {
		return []byte(`[]`), nil
	}

	type wire struct {
		T0     uint64 `json:"t"`
		T1     uint64 `json:"T"`
		Symbol string `json:"s"`
		Intv   string `json:"i"`
		O      string `json:"o"`
		C      string `json:"c"`
		H      string `json:"h"`
		L      string `json:"l"`
		V      string `json:"v"`
		N      int    `json:"n"`
	}
	// newest candle closes at endMs; walk back at most 48 steps
	var opens []uint64
	for open := endMs - step; open >= startMs && len(opens) < 48; open -= step {
		opens = append([]uint64{open}, opens...)
		if open < step {
			break
		}
	}

	out := make([]wire, 0, len(opens))
	base := decimal.NewFromInt(118000)
	for i, open := range opens {
		o := base.Add(decimal.NewFromInt(int64(i % 7 * 25)))
		c := base.Add(decimal.NewFromInt(int64((i + 3) % 7 * 25)))
		out = append(out, wire{
			T0: open, T1: open + step - 1, Symbol: coin, Intv: interval,
			O: o.String(), C: c.String(),
			H: decimal.Max(o, c).Add(decimal.NewFromInt(40)).String(),
			L: decimal.Min(o, c).Sub(decimal.NewFromInt(40)).String(),
			V: "1.5", N: 12 + i,
		})
	}
	return json.Marshal(out)
}

// MockTrader applies the canned submission rules to the entered amount: quote
// for buys, base for sells.
type MockTrader struct{}

func (MockTrader) PlaceOrder(ctx context.Context, req *order.Request) (order.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return order.SubmitResult{}, err
	}
	amount := req.Amount

	switch {
	case amount.GreaterThan(mockLimit):
		return order.SubmitResult{Message: MsgInsufficientBalance}, nil
	case !req.LimitPrice.IsPositive():
		return order.SubmitResult{Message: MsgTickSize}, nil
	case amount.Equal(mockTimeout):
		return order.SubmitResult{Message: MsgNetworkTimeout}, nil
	}

	if req.Side == order.Buy {
		return filledResult(MockBuyOrderID, "0.00009", "118225", "Buy order placed successfully"), nil
	}
	return filledResult(MockSellOrderID, "0.00008", "118225", "Sell order filled"), nil
}

func (MockTrader) CancelOrder(ctx context.Context, asset string, assetIndex uint32, oid uint64) (order.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return order.SubmitResult{}, err
	}
	if oid == 0 {
		return order.SubmitResult{Message: fmt.Sprintf("Cancel failed: unknown order asset=%d", 10000+assetIndex)}, nil
	}
	return order.SubmitResult{Success: true, Message: "Order cancelled", OrderID: &oid}, nil
}

func filledResult(oid uint64, filled, avg, msg string) order.SubmitResult {
	return order.SubmitResult{
		Success:    true,
		Message:    msg,
		OrderID:    &oid,
		FilledSize: &filled,
		AvgPrice:   &avg,
	}
}
