package order

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/behype/pkg/market"
)

var (
	ErrNotPositive         = errors.New("must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimumSize    = errors.New("order size rounds to zero")
)

type ValidationKind string

const (
	NotPositive         ValidationKind = "not_positive"
	InsufficientBalance ValidationKind = "insufficient_balance"
	BelowMinimumSize    ValidationKind = "below_minimum_size"
)

// ValidationError is a form-level rejection raised before any network call.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value decimal.Decimal
	Limit decimal.Decimal // available balance for InsufficientBalance
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case InsufficientBalance:
		return fmt.Sprintf("%s %s exceeds available balance %s", e.Field, e.Value, e.Limit)
	case BelowMinimumSize:
		return fmt.Sprintf("%s %s rounds to zero at lot precision", e.Field, e.Value)
	default:
		return fmt.Sprintf("%s %s must be greater than zero", e.Field, e.Value)
	}
}

func (e *ValidationError) Unwrap() error {
	switch e.Kind {
	case InsufficientBalance:
		return ErrInsufficientBalance
	case BelowMinimumSize:
		return ErrBelowMinimumSize
	default:
		return ErrNotPositive
	}
}

// Build validates user input and produces a normalized limit order.
//
// For Buy, rawQuantity is the quote amount to spend and available is the quote
// balance; the base size is derived at the rounded limit price. For Sell,
// rawQuantity is the base amount and available is the base balance.
// Sizes never round above what available can cover.
// Checks run in order and the first failure is returned.
func Build(side Side, rawQuantity, rawPrice string, available decimal.Decimal, asset market.AssetConfig, tif TimeInForce) (*Request, error) {
	if side != Buy && side != Sell {
		return nil, fmt.Errorf("invalid side %d", side)
	}
	if tif == "" {
		tif = GTC
	}

	qty, err := market.ParseDecimal("quantity", rawQuantity)
	if err != nil {
		return nil, err
	}
	price, err := market.ParseDecimal("price", rawPrice)
	if err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, &ValidationError{Kind: NotPositive, Field: "quantity", Value: qty}
	}
	if !price.IsPositive() {
		return nil, &ValidationError{Kind: NotPositive, Field: "price", Value: price}
	}

	if qty.GreaterThan(available) {
		return nil, &ValidationError{Kind: InsufficientBalance, Field: "quantity", Value: qty, Limit: available}
	}

	limit, err := market.RoundToTick(price, asset.TickSize)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", asset.ID, err)
	}
	if !limit.IsPositive() {
		return nil, &ValidationError{Kind: NotPositive, Field: "price", Value: limit}
	}

	var size decimal.Decimal
	base := qty
	if side == Buy {
		// Truncate so size*limit never costs more than the entered amount.
		base = qty.DivRound(limit, asset.LotPrecision+8)
		size = base.RoundDown(asset.LotPrecision)
	} else {
		size, err = market.RoundToLot(base, asset.LotPrecision)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.ID, err)
		}
		if size.GreaterThan(available) {
			size = base.RoundDown(asset.LotPrecision)
		}
	}
	if !size.IsPositive() {
		return nil, &ValidationError{Kind: BelowMinimumSize, Field: "size", Value: base}
	}

	return &Request{
		Side:        side,
		Asset:       asset.ID,
		AssetIndex:  asset.Index,
		Quantity:    size,
		LimitPrice:  limit,
		Notional:    size.Mul(limit),
		Amount:      qty,
		TimeInForce: tif,
		PriceString: market.FormatTick(limit, asset.TickSize),
		SizeString:  market.FormatLot(size, asset.LotPrecision),
	}, nil
}
