package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Timeframe is a chart interval with its default look-back window.
type Timeframe string

const (
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// ParseTimeframe accepts the exchange interval strings.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d:
		return tf, nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Duration is the length of one candle.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return time.Hour
}

// LookBack is how much history a chart at this interval fetches.
func (tf Timeframe) LookBack() time.Duration {
	switch tf {
	case Timeframe15m:
		return 24 * time.Hour
	case Timeframe1h:
		return 7 * 24 * time.Hour
	case Timeframe4h:
		return 30 * 24 * time.Hour
	case Timeframe1d:
		return 90 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  uint64          `json:"openTime"`
	CloseTime uint64          `json:"closeTime"`
	Coin      string          `json:"coin"`
	Interval  string          `json:"interval"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Trades    uint64          `json:"trades"`
}

func (c Candle) Change() decimal.Decimal { return c.Close.Sub(c.Open) }

// PercentChange is the open-to-close move in percent; zero when open is zero.
func (c Candle) PercentChange() decimal.Decimal {
	if c.Open.IsZero() {
		return decimal.Zero
	}
	return c.Change().Div(c.Open).Mul(decimal.NewFromInt(100))
}

func (c Candle) Bullish() bool { return c.Close.GreaterThanOrEqual(c.Open) }

type wireCandle struct {
	T0 uint64 `json:"t"`
	T1 uint64 `json:"T"`
	S  string `json:"s"`
	I  string `json:"i"`
	O  string `json:"o"`
	C  string `json:"c"`
	H  string `json:"h"`
	L  string `json:"l"`
	V  string `json:"v"`
	N  uint64 `json:"n"`
}

// ParseCandles projects a candleSnapshot payload. A candle with any bad
// numeric field is dropped and logged; the rest are returned in input order.
func ParseCandles(raw []byte, log *zap.Logger) ([]Candle, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("candles payload is not an array: %w", err)
	}

	out := make([]Candle, 0, len(elems))
	for i, elem := range elems {
		var w wireCandle
		if err := json.Unmarshal(elem, &w); err != nil {
			log.Warn("candle_skipped", zap.Int("index", i), zap.Error(err))
			continue
		}

		c, err := w.candle()
		if err != nil {
			log.Warn("candle_skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (w wireCandle) candle() (Candle, error) {
	c := Candle{
		OpenTime:  w.T0,
		CloseTime: w.T1,
		Coin:      w.S,
		Interval:  w.I,
		Trades:    w.N,
	}

	var merr *multierror.Error
	var err error

	c.Open, err = ParseDecimal("o", w.O)
	merr = multierror.Append(merr, err)

	c.High, err = ParseDecimal("h", w.H)
	merr = multierror.Append(merr, err)

	c.Low, err = ParseDecimal("l", w.L)
	merr = multierror.Append(merr, err)

	c.Close, err = ParseDecimal("c", w.C)
	merr = multierror.Append(merr, err)

	c.Volume, err = ParseDecimal("v", w.V)
	merr = multierror.Append(merr, err)

	return c, merr.ErrorOrNil()
}
