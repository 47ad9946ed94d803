package history

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/behype/pkg/order"
)

// FillRecord is one executed trade attributed to the wallet.
type FillRecord struct {
	Coin          string          `json:"coin"`
	Price         decimal.Decimal `json:"px"`
	Size          decimal.Decimal `json:"sz"`
	Side          order.Side      `json:"side"`
	Time          uint64          `json:"time"` // ms since epoch
	StartPosition decimal.Decimal `json:"startPosition"`
	Direction     string          `json:"dir"`
	ClosedPnL     decimal.Decimal `json:"closedPnl"`
	Hash          string          `json:"hash"`
	OrderID       uint64          `json:"oid"`
	Crossed       bool            `json:"crossed"`

	Fee      *decimal.Decimal `json:"fee,omitempty"`
	TradeID  *uint64          `json:"tid,omitempty"`
	FeeToken string           `json:"feeToken,omitempty"`
}

// Notional is price times size.
func (f FillRecord) Notional() decimal.Decimal { return f.Price.Mul(f.Size) }

// ParseFills projects a userFills / userFillsByTime payload.
// Malformed elements are logged and dropped; output keeps input order.
func ParseFills(raw []byte, log *zap.Logger) ([]FillRecord, error) {
	if log == nil {
		log = zap.NewNop()
	}
	elems, err := splitArray(raw)
	if err != nil {
		return nil, err
	}

	out := make([]FillRecord, 0, len(elems))
	for i, el := range elems {
		rec, bad := projectFill(i, el)
		if bad != nil {
			log.Warn("fill_dropped", zap.Int("index", bad.Index), zap.String("field", bad.Field), zap.String("reason", bad.Reason))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func projectFill(i int, raw []byte) (FillRecord, *MalformedRecord) {
	f := newFields(i, raw)

	rec := FillRecord{
		Coin:          f.str("coin", true),
		Price:         zeroIfNil(f.dec("px", true)),
		Size:          zeroIfNil(f.dec("sz", true)),
		Time:          u64OrZero(f.u64("time", true)),
		StartPosition: zeroIfNil(f.dec("startPosition", true)),
		Direction:     f.str("dir", true),
		ClosedPnL:     zeroIfNil(f.dec("closedPnl", true)),
		Hash:          f.str("hash", true),
		OrderID:       u64OrZero(f.u64("oid", true)),
		Crossed:       f.boolean("crossed"),
		Fee:           f.dec("fee", false),
		TradeID:       f.u64("tid", false),
		FeeToken:      f.str("feeToken", false),
	}
	wire := f.str("side", true)
	if f.err != nil {
		return FillRecord{}, f.err
	}

	side, ok := SideFromWire(wire, rec.Direction)
	if !ok {
		return FillRecord{}, &MalformedRecord{Index: i, Field: "side", Reason: "is not a known side code"}
	}
	rec.Side = side
	return rec, nil
}

// SortFillsNewestFirst orders fills by time descending, trade id breaking ties.
func SortFillsNewestFirst(fills []FillRecord) {
	sort.SliceStable(fills, func(i, j int) bool {
		if fills[i].Time != fills[j].Time {
			return fills[i].Time > fills[j].Time
		}
		return u64OrZero(fills[i].TradeID) > u64OrZero(fills[j].TradeID)
	})
}
