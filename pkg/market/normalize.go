package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError reports a numeric string that could not be read as a decimal.
type ParseError struct {
	Field string
	Raw   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q is not a number", e.Field, e.Raw)
}

// ParseDecimal parses raw as a decimal. Surrounding whitespace is ignored.
func ParseDecimal(field, raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, &ParseError{Field: field, Raw: raw}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Field: field, Raw: raw}
	}
	return d, nil
}

// RoundToTick returns the multiple of tickSize nearest to price, halves rounded up.
func RoundToTick(price, tickSize decimal.Decimal) (decimal.Decimal, error) {
	if !tickSize.IsPositive() {
		return decimal.Zero, fmt.Errorf("tick size must be positive, got %s", tickSize)
	}
	steps := price.DivRound(tickSize, 16).Round(0)
	return steps.Mul(tickSize), nil
}

// RoundToLot rounds qty to lotPrecision fractional digits, halves rounded up.
func RoundToLot(qty decimal.Decimal, lotPrecision int32) (decimal.Decimal, error) {
	if lotPrecision < 0 {
		return decimal.Zero, fmt.Errorf("lot precision must be >= 0, got %d", lotPrecision)
	}
	return qty.Round(lotPrecision), nil
}

// TickDecimals is the number of fractional digits a tick size carries:
// 1 -> 0, 0.5 -> 1, 0.01 -> 2.
func TickDecimals(tickSize decimal.Decimal) int32 {
	if tickSize.IsInteger() {
		return 0
	}
	s := tickSize.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}

// FormatTick renders price with exactly as many digits as the tick size.
func FormatTick(price, tickSize decimal.Decimal) string {
	return price.StringFixed(TickDecimals(tickSize))
}

// FormatLot renders qty with lotPrecision fractional digits.
func FormatLot(qty decimal.Decimal, lotPrecision int32) string {
	return qty.StringFixed(lotPrecision)
}
