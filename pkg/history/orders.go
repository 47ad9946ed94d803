package history

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/behype/pkg/order"
)

// OpenOrderRecord is a resting order as reported by frontendOpenOrders.
type OpenOrderRecord struct {
	Coin           string            `json:"coin"`
	OrderID        uint64            `json:"oid"`
	Side           order.Side        `json:"side"`
	LimitPrice     decimal.Decimal   `json:"limitPx"`
	Size           decimal.Decimal   `json:"sz"`
	OrigSize       decimal.Decimal   `json:"origSz"`
	Timestamp      uint64            `json:"timestamp"`
	IsTrigger      bool              `json:"isTrigger"`
	ReduceOnly     bool              `json:"reduceOnly"`
	IsPositionTpsl bool              `json:"isPositionTpsl"`
	OrderType      string            `json:"orderType"`
	TimeInForce    order.TimeInForce `json:"tif,omitempty"`

	TriggerPrice     *decimal.Decimal  `json:"triggerPx,omitempty"`
	TriggerCondition *string           `json:"triggerCondition,omitempty"`
	Children         []json.RawMessage `json:"children"`
}

// Filled is the part of the original size that has executed.
func (o OpenOrderRecord) Filled() decimal.Decimal { return o.OrigSize.Sub(o.Size) }

// ParseOpenOrders projects an openOrders / frontendOpenOrders payload.
// Malformed elements are logged and dropped; output keeps input order.
func ParseOpenOrders(raw []byte, log *zap.Logger) ([]OpenOrderRecord, error) {
	if log == nil {
		log = zap.NewNop()
	}
	elems, err := splitArray(raw)
	if err != nil {
		return nil, err
	}

	out := make([]OpenOrderRecord, 0, len(elems))
	for i, el := range elems {
		rec, bad := projectOpenOrder(i, el)
		if bad != nil {
			log.Warn("open_order_dropped", zap.Int("index", bad.Index), zap.String("field", bad.Field), zap.String("reason", bad.Reason))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func projectOpenOrder(i int, raw []byte) (OpenOrderRecord, *MalformedRecord) {
	f := newFields(i, raw)

	rec := OpenOrderRecord{
		Coin:           f.str("coin", true),
		OrderID:        u64OrZero(f.u64("oid", true)),
		LimitPrice:     zeroIfNil(f.dec("limitPx", true)),
		Size:           zeroIfNil(f.dec("sz", true)),
		OrigSize:       zeroIfNil(f.dec("origSz", true)),
		Timestamp:      u64OrZero(f.u64("timestamp", true)),
		IsTrigger:      f.boolean("isTrigger"),
		ReduceOnly:     f.boolean("reduceOnly"),
		IsPositionTpsl: f.boolean("isPositionTpsl"),
		OrderType:      f.str("orderType", true),
	}
	wire := f.str("side", true)
	tif := f.str("tif", !rec.IsTrigger)
	trigger := f.dec("triggerPx", false)
	cond := f.str("triggerCondition", false)
	if f.err != nil {
		return OpenOrderRecord{}, f.err
	}

	side, ok := SideFromWire(wire, "")
	if !ok {
		return OpenOrderRecord{}, &MalformedRecord{Index: i, Field: "side", Reason: "is not a known side code"}
	}
	rec.Side = side

	if tif != "" {
		parsed, err := order.ParseTimeInForce(tif)
		if err != nil {
			return OpenOrderRecord{}, &MalformedRecord{Index: i, Field: "tif", Reason: "is not a known time in force"}
		}
		rec.TimeInForce = parsed
	}
	if trigger != nil && !trigger.IsZero() {
		rec.TriggerPrice = trigger
	}
	if cond != "" && cond != "N/A" {
		rec.TriggerCondition = &cond
	}

	rec.Children = []json.RawMessage{}
	if v, ok := f.present("children"); ok {
		if err := json.Unmarshal(v, &rec.Children); err != nil {
			return OpenOrderRecord{}, &MalformedRecord{Index: i, Field: "children", Reason: "is not an array"}
		}
	}
	return rec, nil
}

// SortOrdersNewestFirst orders by placement time descending, then order id.
func SortOrdersNewestFirst(orders []OpenOrderRecord) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Timestamp != orders[j].Timestamp {
			return orders[i].Timestamp > orders[j].Timestamp
		}
		return orders[i].OrderID > orders[j].OrderID
	})
}
