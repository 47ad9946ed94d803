package market

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AssetQuote is one reconciled, USD-quoted spot price.
type AssetQuote struct {
	AssetID     string          `json:"assetId"`
	DisplayName string          `json:"displayName"`
	Price       decimal.Decimal `json:"price"`
	Formatted   string          `json:"formatted"`
}

// Band thresholds for feeds that mix USD mids with ratios to the reference.
// They were picked against the observed spot universe and are kept verbatim;
// changing them changes displayed prices.
var (
	stableLow  = decimal.RequireFromString("0.9")
	stableHigh = decimal.RequireFromString("1.1")
	ratioFloor = decimal.RequireFromString("0.00001")
	one        = decimal.NewFromInt(1)
	cent       = decimal.RequireFromString("0.01")
)

// QuoteDecimals picks display precision by magnitude.
func QuoteDecimals(price decimal.Decimal) int32 {
	switch {
	case price.GreaterThanOrEqual(one):
		return 2
	case price.GreaterThanOrEqual(cent):
		return 4
	default:
		return 6
	}
}

// ToUSD converts a raw mid to USD given the reference price.
// An authoritative denomination wins over the band heuristic.
func ToUSD(raw, reference decimal.Decimal, denom Denomination) decimal.Decimal {
	switch denom {
	case DenomUSD:
		return raw
	case DenomRatio:
		return raw.Mul(reference)
	}

	switch {
	case raw.GreaterThanOrEqual(stableLow) && raw.LessThanOrEqual(stableHigh):
		return raw
	case raw.GreaterThan(ratioFloor) && raw.LessThan(one):
		return raw.Mul(reference)
	default:
		return raw
	}
}

// Reconciler turns the shared mid-price feed into per-asset USD quotes.
type Reconciler struct {
	registry  *Registry
	reference string
	log       *zap.Logger
}

func NewReconciler(registry *Registry, reference string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{registry: registry, reference: reference, log: log}
}

// Reference returns the asset key whose mid is already USD.
func (r *Reconciler) Reference() string { return r.reference }

// Reconcile builds the quote table from one allMids snapshot.
//
// A missing or unparseable reference mid fails the whole call. Any other entry
// that cannot be parsed is skipped; those failures come back aggregated in err
// next to the quotes that did reconcile.
func (r *Reconciler) Reconcile(mids map[string]string) ([]AssetQuote, error) {
	rawRef, ok := mids[r.reference]
	if !ok {
		return nil, fmt.Errorf("reference asset %s missing from mids", r.reference)
	}
	refPrice, err := ParseDecimal(r.reference, rawRef)
	if err != nil {
		return nil, fmt.Errorf("reference price: %w", err)
	}
	if !refPrice.IsPositive() {
		return nil, fmt.Errorf("reference price %s must be positive", refPrice)
	}

	var merr *multierror.Error
	quotes := make([]AssetQuote, 0, len(mids))
	converted := 0

	for key, raw := range mids {
		asset, known := r.registry.Lookup(key)
		if !known {
			continue
		}

		price, err := ParseDecimal(key, raw)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}

		usd := price
		if key != r.reference {
			usd = ToUSD(price, refPrice, asset.Denomination)
			if !usd.Equal(price) && converted < 3 {
				r.log.Debug("ratio_converted",
					zap.String("asset", key),
					zap.String("name", asset.Name),
					zap.String("raw", price.String()),
					zap.String("usd", usd.String()))
				converted++
			}
		}

		places := QuoteDecimals(usd)
		rounded := usd.Round(places)
		// Rounding can carry across a band edge (0.99999996 -> 1.0000).
		if p := QuoteDecimals(rounded); p != places {
			places = p
			rounded = usd.Round(places)
		}
		quotes = append(quotes, AssetQuote{
			AssetID:     key,
			DisplayName: asset.Name,
			Price:       rounded,
			Formatted:   rounded.StringFixed(places),
		})
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].AssetID < quotes[j].AssetID })
	return quotes, merr.ErrorOrNil()
}
