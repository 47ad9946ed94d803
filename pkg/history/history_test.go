package history

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uhyunpark/behype/pkg/order"
)

const fillsPayload = `[
	{"coin":"@142","px":"118225.0","sz":"0.00009","side":"B","time":1752003600000,"startPosition":"0.0","dir":"Buy","closedPnl":"0.0","hash":"0x123456789abcdef","oid":130243366999,"crossed":true,"fee":"0.50","tid":1001,"feeToken":"USDC"},
	{"coin":"@142","px":"118000.0","sz":"0.00008","side":"A","time":1752000000000,"startPosition":"0.00009","dir":"Sell","closedPnl":"2.25","oid":130243367000,"crossed":false},
	{"coin":"@142","px":"118000.0","sz":"0.00008","side":"A","time":1752007200000,"startPosition":"0.00009","dir":"Sell","closedPnl":"2.25","hash":"0xfedcba987654321","oid":130243367000,"crossed":false}
]`

func TestParseFillsDropsMalformed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	fills, err := ParseFills([]byte(fillsPayload), zap.New(core))
	require.NoError(t, err)
	require.Len(t, fills, 2)

	assert.Equal(t, "0x123456789abcdef", fills[0].Hash)
	assert.Equal(t, "0xfedcba987654321", fills[1].Hash)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "fill_dropped", entry.Message)
	assert.Equal(t, "hash", entry.ContextMap()["field"])
	assert.Equal(t, int64(1), entry.ContextMap()["index"])
}

func TestParseFillsProjection(t *testing.T) {
	fills, err := ParseFills([]byte(fillsPayload), nil)
	require.NoError(t, err)

	buy := fills[0]
	assert.Equal(t, order.Buy, buy.Side)
	assert.True(t, buy.Price.Equal(decimal.RequireFromString("118225")))
	assert.Equal(t, uint64(130243366999), buy.OrderID)
	assert.True(t, buy.Crossed)
	require.NotNil(t, buy.Fee)
	assert.Equal(t, "0.5", buy.Fee.String())
	require.NotNil(t, buy.TradeID)
	assert.Equal(t, uint64(1001), *buy.TradeID)
	assert.Equal(t, "USDC", buy.FeeToken)
	assert.Equal(t, "10.64025", buy.Notional().String())

	sell := fills[1]
	assert.Equal(t, order.Sell, sell.Side)
	assert.Nil(t, sell.Fee)
	assert.Nil(t, sell.TradeID)
	assert.True(t, sell.ClosedPnL.Equal(decimal.RequireFromString("2.25")))
}

func TestParseFillsErrors(t *testing.T) {
	_, err := ParseFills([]byte(`{"fills":[]}`), nil)
	assert.Error(t, err)

	_, err = ParseFills([]byte(``), nil)
	assert.Error(t, err)

	fills, err := ParseFills([]byte(`[]`), nil)
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestProjectFillReasons(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not object", `"x"`, ""},
		{"px not decimal", `{"coin":"@1","px":"abc","sz":"1","side":"B","time":1,"startPosition":"0","dir":"Buy","closedPnl":"0","hash":"h","oid":1,"crossed":true}`, "px"},
		{"time negative", `{"coin":"@1","px":"1","sz":"1","side":"B","time":-1,"startPosition":"0","dir":"Buy","closedPnl":"0","hash":"h","oid":1,"crossed":true}`, "time"},
		{"crossed missing", `{"coin":"@1","px":"1","sz":"1","side":"B","time":1,"startPosition":"0","dir":"Buy","closedPnl":"0","hash":"h","oid":1}`, "crossed"},
		{"unknown side", `{"coin":"@1","px":"1","sz":"1","side":"Z","time":1,"startPosition":"0","dir":"Liquidation","closedPnl":"0","hash":"h","oid":1,"crossed":true}`, "side"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bad := projectFill(4, []byte(tt.raw))
			require.NotNil(t, bad)
			assert.Equal(t, 4, bad.Index)
			assert.Equal(t, tt.field, bad.Field)

			var target *MalformedRecord
			assert.True(t, errors.As(error(bad), &target))
		})
	}
}

func TestSideFromWire(t *testing.T) {
	tests := []struct {
		side, dir string
		want      order.Side
		ok        bool
	}{
		{"B", "", order.Buy, true},
		{"A", "", order.Sell, true},
		{"", "Buy", order.Buy, true},
		{"", "Sell", order.Sell, true},
		{"", "Buy Long", order.Buy, true},
		{"A", "Buy", order.Buy, true},
		{"B", "Sell", order.Buy, true},
		{"A", "Sell", order.Sell, true},
		{"X", "Open Long", 0, false},
	}
	for _, tt := range tests {
		got, ok := SideFromWire(tt.side, tt.dir)
		assert.Equal(t, tt.ok, ok, "%q/%q", tt.side, tt.dir)
		assert.Equal(t, tt.want, got, "%q/%q", tt.side, tt.dir)
	}
}

const ordersPayload = `[
	{"coin":"@142","oid":7,"side":"B","limitPx":"117000","sz":"0.0001","origSz":"0.0002","timestamp":1752000000000,"isTrigger":false,"reduceOnly":false,"isPositionTpsl":false,"orderType":"Limit","tif":"Gtc","triggerPx":"0.0","triggerCondition":"N/A","children":[]},
	{"coin":"@142","oid":8,"side":"A","limitPx":"120000","sz":"0.0001","origSz":"0.0001","timestamp":1752000500000,"isTrigger":true,"reduceOnly":true,"isPositionTpsl":false,"orderType":"Take Profit Limit","triggerPx":"119500","triggerCondition":"Price above 119500"},
	{"coin":"@142","oid":9,"side":"A","limitPx":"120000","sz":"0.0001","origSz":"0.0001","timestamp":1752000600000,"isTrigger":false,"reduceOnly":false,"isPositionTpsl":false,"orderType":"Limit"}
]`

func TestParseOpenOrders(t *testing.T) {
	orders, err := ParseOpenOrders([]byte(ordersPayload), nil)
	require.NoError(t, err)
	// third order lacks tif while not a trigger
	require.Len(t, orders, 2)

	limit := orders[0]
	assert.Equal(t, order.Buy, limit.Side)
	assert.Equal(t, order.GTC, limit.TimeInForce)
	assert.Nil(t, limit.TriggerPrice)
	assert.Nil(t, limit.TriggerCondition)
	assert.NotNil(t, limit.Children)
	assert.Equal(t, "0.0001", limit.Filled().String())

	trigger := orders[1]
	assert.Equal(t, order.Sell, trigger.Side)
	assert.True(t, trigger.IsTrigger)
	assert.Equal(t, order.TimeInForce(""), trigger.TimeInForce)
	require.NotNil(t, trigger.TriggerPrice)
	assert.Equal(t, "119500", trigger.TriggerPrice.String())
	require.NotNil(t, trigger.TriggerCondition)
	assert.Equal(t, "Price above 119500", *trigger.TriggerCondition)
	assert.Empty(t, trigger.Children)
	assert.NotNil(t, trigger.Children)
}

func TestSortNewestFirst(t *testing.T) {
	fills, err := ParseFills([]byte(fillsPayload), nil)
	require.NoError(t, err)
	SortFillsNewestFirst(fills)
	assert.Equal(t, uint64(1752007200000), fills[0].Time)

	orders, err := ParseOpenOrders([]byte(ordersPayload), nil)
	require.NoError(t, err)
	SortOrdersNewestFirst(orders)
	assert.Equal(t, uint64(8), orders[0].OrderID)
}
