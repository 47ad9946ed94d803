package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// IsBuy reports whether s is the buy side.
func (s Side) IsBuy() bool { return s == Buy }

// ParseSide accepts the API spelling ("buy"/"sell", any case).
// Exchange wire codes are decoded by the history projector, not here.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("invalid side %q", s)
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// TimeInForce uses the exchange's spelling.
type TimeInForce string

const (
	GTC TimeInForce = "Gtc" // rests until cancelled
	IOC TimeInForce = "Ioc" // fills what it can, cancels the rest
	ALO TimeInForce = "Alo" // post-only
)

// ParseTimeInForce accepts any case; empty means GTC.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gtc":
		return GTC, nil
	case "ioc":
		return IOC, nil
	case "alo":
		return ALO, nil
	}
	return "", fmt.Errorf("invalid time in force %q", s)
}

// Request is a validated, tick/lot-normalized limit order ready for signing.
// Quantity is always in base units. Notional is Quantity*LimitPrice, the quote
// the order can cost. Amount is what the caller entered: quote for buys, base
// for sells.
type Request struct {
	Side        Side            `json:"side"`
	Asset       string          `json:"asset"`
	AssetIndex  uint32          `json:"assetIndex"`
	Quantity    decimal.Decimal `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limitPrice"`
	Notional    decimal.Decimal `json:"notional"`
	Amount      decimal.Decimal `json:"amount"`
	TimeInForce TimeInForce     `json:"timeInForce"`
	ReduceOnly  bool            `json:"reduceOnly"`

	// Wire renderings at the asset's tick and lot precision.
	PriceString string `json:"priceString"`
	SizeString  string `json:"sizeString"`
}
