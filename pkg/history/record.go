package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
)

// MalformedRecord describes one array element that could not be projected.
type MalformedRecord struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecord) Error() string {
	return fmt.Sprintf("record %d: field %q %s", e.Index, e.Field, e.Reason)
}

// SideFromWire maps the exchange's side code and direction label to a Side.
// Either "B" or a dir starting with "Buy" makes a buy, so a buy label wins over
// an "A" code. Otherwise "A" or a "Sell..." dir is a sell.
func SideFromWire(side, dir string) (order.Side, bool) {
	switch {
	case side == "B" || strings.HasPrefix(dir, "Buy"):
		return order.Buy, true
	case side == "A" || strings.HasPrefix(dir, "Sell"):
		return order.Sell, true
	}
	return 0, false
}

// splitArray decodes the top-level payload into raw elements.
func splitArray(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("payload is not a JSON array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	return elems, nil
}

// fields wraps one decoded object and records the first failure.
type fields struct {
	index int
	m     map[string]json.RawMessage
	err   *MalformedRecord
}

func newFields(index int, raw json.RawMessage) *fields {
	f := &fields{index: index}
	if err := json.Unmarshal(raw, &f.m); err != nil || f.m == nil {
		f.err = &MalformedRecord{Index: index, Field: "", Reason: "is not an object"}
	}
	return f
}

func (f *fields) fail(field, reason string) {
	if f.err == nil {
		f.err = &MalformedRecord{Index: f.index, Field: field, Reason: reason}
	}
}

func (f *fields) present(name string) (json.RawMessage, bool) {
	if f.err != nil {
		return nil, false
	}
	v, ok := f.m[name]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func (f *fields) str(name string, required bool) string {
	v, ok := f.present(name)
	if !ok {
		if required {
			f.fail(name, "is missing")
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.fail(name, "is not a string")
	}
	return s
}

func (f *fields) dec(name string, required bool) *decimal.Decimal {
	v, ok := f.present(name)
	if !ok {
		if required {
			f.fail(name, "is missing")
		}
		return nil
	}
	// Decimals arrive as strings; bare numbers are tolerated.
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		s = string(v)
	}
	d, err := market.ParseDecimal(name, s)
	if err != nil {
		f.fail(name, "is not a decimal")
		return nil
	}
	return &d
}

func (f *fields) u64(name string, required bool) *uint64 {
	v, ok := f.present(name)
	if !ok {
		if required {
			f.fail(name, "is missing")
		}
		return nil
	}
	var n uint64
	if err := json.Unmarshal(v, &n); err != nil {
		f.fail(name, "is not an unsigned integer")
		return nil
	}
	return &n
}

func (f *fields) boolean(name string) bool {
	v, ok := f.present(name)
	if !ok {
		f.fail(name, "is missing")
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		f.fail(name, "is not a boolean")
	}
	return b
}

func zeroIfNil(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func u64OrZero(n *uint64) uint64 {
	if n == nil {
		return 0
	}
	return *n
}
