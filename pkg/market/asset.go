package market

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Denomination tells the reconciler how an asset's mid is quoted.
type Denomination string

const (
	// DenomUnknown leaves the decision to the magnitude heuristic.
	DenomUnknown Denomination = ""
	DenomUSD     Denomination = "usd"
	// DenomRatio means the mid is a ratio to the reference asset.
	DenomRatio Denomination = "ratio"
)

// AssetConfig holds per-asset trading parameters.
// Tick size and lot precision come from configuration or exchange metadata,
// never from constants in the normalizer.
type AssetConfig struct {
	ID           string          // exchange key, e.g. "@142"
	Index        uint32          // numeric part of ID, used by cancel requests
	Name         string          // display pair, e.g. "BTC/USDC"
	Base         string          // base token, e.g. "UBTC"
	Quote        string          // quote token, e.g. "USDC"
	BaseAliases  []string        // other coin names the base shows up as in balances
	TickSize     decimal.Decimal // minimum price increment
	LotPrecision int32           // max size decimals
	Denomination Denomination
}

// Validate checks the parameters the normalizer depends on.
func (a AssetConfig) Validate() error {
	if !strings.HasPrefix(a.ID, "@") {
		return fmt.Errorf("asset id %q must start with @", a.ID)
	}
	if a.Name == "" {
		return fmt.Errorf("asset %s: missing display name", a.ID)
	}
	if !a.TickSize.IsPositive() {
		return fmt.Errorf("asset %s: tick size must be positive", a.ID)
	}
	if a.LotPrecision < 0 {
		return fmt.Errorf("asset %s: lot precision must be >= 0", a.ID)
	}
	switch a.Denomination {
	case DenomUnknown, DenomUSD, DenomRatio:
	default:
		return fmt.Errorf("asset %s: unknown denomination %q", a.ID, a.Denomination)
	}
	return nil
}

// BaseCoins returns the base token followed by its aliases.
func (a AssetConfig) BaseCoins() []string {
	return append([]string{a.Base}, a.BaseAliases...)
}

// ParseAssetIndex extracts the numeric index from an "@N" key.
func ParseAssetIndex(id string) (uint32, error) {
	if !strings.HasPrefix(id, "@") {
		return 0, fmt.Errorf("asset id %q must start with @", id)
	}
	n, err := strconv.ParseUint(id[1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("asset id %q: %w", id, err)
	}
	return uint32(n), nil
}

// DefaultTickSize and DefaultLotPrecision apply to assets registered without
// explicit parameters. BTC/USDC overrides both.
var (
	DefaultTickSize     = decimal.RequireFromString("0.0001")
	DefaultLotPrecision = int32(2)
)

// DefaultBTCUSDC is the BTC/USDC spot pair: $1 tick, 5 size decimals.
var DefaultBTCUSDC = AssetConfig{
	ID:           "@142",
	Index:        142,
	Name:         "BTC/USDC",
	Base:         "UBTC",
	Quote:        "USDC",
	BaseAliases:  []string{"BTC"},
	TickSize:     decimal.NewFromInt(1),
	LotPrecision: 5,
	Denomination: DenomUSD,
}
