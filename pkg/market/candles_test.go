package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandles(t *testing.T) {
	raw := []byte(`[
		{"t":1752000000000,"T":1752003599999,"s":"@142","i":"1h","o":"118000","c":"118225.5","h":"118400","l":"117900","v":"12.5","n":420},
		{"t":1752003600000,"T":1752007199999,"s":"@142","i":"1h","o":"118225.5","c":"oops","h":"118300","l":"118100","v":"3.1","n":88},
		{"t":"bad"},
		{"t":1752007200000,"T":1752010799999,"s":"@142","i":"1h","o":"118200","c":"118100","h":"118250","l":"118000","v":"1","n":5}
	]`)

	candles, err := ParseCandles(raw, nil)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, uint64(1752000000000), first.OpenTime)
	assert.Equal(t, "1h", first.Interval)
	assert.True(t, first.Change().Equal(d("225.5")))
	assert.True(t, first.Bullish())
	assert.Equal(t, "0.19", first.PercentChange().StringFixed(2))

	assert.False(t, candles[1].Bullish())
}

func TestParseCandlesNotArray(t *testing.T) {
	_, err := ParseCandles([]byte(`{"error":"x"}`), nil)
	assert.Error(t, err)
}

func TestTimeframes(t *testing.T) {
	tf, err := ParseTimeframe("4h")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, tf.LookBack())

	_, err = ParseTimeframe("3m")
	assert.Error(t, err)

	assert.Equal(t, 24*time.Hour, Timeframe15m.LookBack())
	assert.Equal(t, 90*24*time.Hour, Timeframe1d.LookBack())
}

func TestPercentChangeZeroOpen(t *testing.T) {
	c := Candle{Open: d("0"), Close: d("5")}
	assert.True(t, c.PercentChange().IsZero())
}
