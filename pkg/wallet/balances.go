package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/behype/pkg/market"
)

// TokenBalance is one spot token holding. Hold is the part locked by
// resting orders.
type TokenBalance struct {
	Coin  string          `json:"coin"`
	Total decimal.Decimal `json:"total"`
	Hold  decimal.Decimal `json:"hold"`
}

// Free is total minus hold, floored at zero.
func (b TokenBalance) Free() decimal.Decimal {
	free := b.Total.Sub(b.Hold)
	if free.IsNegative() {
		return decimal.Zero
	}
	return free
}

// Balances is a snapshot of all spot holdings, in payload order.
type Balances []TokenBalance

// Find returns the first balance whose coin matches coin or one of aliases.
func (bs Balances) Find(coin string, aliases ...string) (TokenBalance, bool) {
	names := append([]string{coin}, aliases...)
	for _, name := range names {
		for _, b := range bs {
			if b.Coin == name {
				return b, true
			}
		}
	}
	return TokenBalance{}, false
}

// Available is the free balance of coin, zero if the wallet holds none.
func (bs Balances) Available(coin string, aliases ...string) decimal.Decimal {
	b, ok := bs.Find(coin, aliases...)
	if !ok {
		return decimal.Zero
	}
	return b.Free()
}

type wireBalance struct {
	Coin  string `json:"coin"`
	Total string `json:"total"`
	Hold  string `json:"hold"`
}

// ParseBalances projects a spotClearinghouseState payload. Entries with an
// unreadable amount are logged and skipped.
func ParseBalances(raw []byte, log *zap.Logger) (Balances, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var state struct {
		Balances []wireBalance `json:"balances"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode clearinghouse state: %w", err)
	}

	out := make(Balances, 0, len(state.Balances))
	for i, w := range state.Balances {
		total, err := market.ParseDecimal("total", w.Total)
		if err != nil {
			log.Warn("balance_skipped", zap.Int("index", i), zap.String("coin", w.Coin), zap.Error(err))
			continue
		}
		hold := decimal.Zero
		if w.Hold != "" {
			if hold, err = market.ParseDecimal("hold", w.Hold); err != nil {
				log.Warn("balance_skipped", zap.Int("index", i), zap.String("coin", w.Coin), zap.Error(err))
				continue
			}
		}
		out = append(out, TokenBalance{Coin: w.Coin, Total: total, Hold: hold})
	}
	return out, nil
}
