package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/behype/params"
)

func infoServer(t *testing.T, handler func(body map[string]any) (int, string)) *HTTPInfo {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		status, resp := handler(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return NewHTTPInfo(params.Info{URL: srv.URL, Timeout: 2 * time.Second}, nil)
}

func TestHTTPInfoAllMids(t *testing.T) {
	info := infoServer(t, func(body map[string]any) (int, string) {
		assert.Equal(t, "allMids", body["type"])
		return http.StatusOK, `{"@142":"118225.5","@150":"0.000085"}`
	})

	mids, err := info.AllMids(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"@142": "118225.5", "@150": "0.000085"}, mids)
}

func TestHTTPInfoStatusError(t *testing.T) {
	info := infoServer(t, func(map[string]any) (int, string) {
		return http.StatusTooManyRequests, "rate limited"
	})

	_, err := info.AllMids(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, "rate limited", se.Body)
}

func TestHTTPInfoRequestShapes(t *testing.T) {
	var got []map[string]any
	info := infoServer(t, func(body map[string]any) (int, string) {
		got = append(got, body)
		return http.StatusOK, `[]`
	})
	ctx := context.Background()
	user := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	_, err := info.UserFills(ctx, user, 1000, 2000)
	require.NoError(t, err)
	_, err = info.OpenOrders(ctx, user)
	require.NoError(t, err)
	_, err = info.Candles(ctx, "@142", "1h", 1000, 2000)
	require.NoError(t, err)
	_, err = info.TokenBalances(ctx, user)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, "userFillsByTime", got[0]["type"])
	assert.Equal(t, user, got[0]["user"])
	assert.Equal(t, float64(1000), got[0]["startTime"])
	assert.Equal(t, "frontendOpenOrders", got[1]["type"])
	assert.Equal(t, "candleSnapshot", got[2]["type"])
	req, ok := got[2]["req"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "@142", req["coin"])
	assert.Equal(t, "1h", req["interval"])
	assert.Equal(t, "spotClearinghouseState", got[3]["type"])
}

func TestHTTPInfoSpotMeta(t *testing.T) {
	info := infoServer(t, func(map[string]any) (int, string) {
		return http.StatusOK, `{"universe":[{"name":"@142","tokens":[197,0],"index":142}],"tokens":[{"name":"UBTC","szDecimals":5,"index":197}]}`
	})

	meta, err := info.SpotMeta(context.Background())
	require.NoError(t, err)
	require.Len(t, meta.Universe, 1)
	assert.Equal(t, 142, meta.Universe[0].Index)
	assert.Equal(t, int32(5), meta.Tokens[0].SzDecimals)
}

func TestHTTPInfoHonorsContext(t *testing.T) {
	info := infoServer(t, func(map[string]any) (int, string) {
		return http.StatusOK, `{}`
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := info.AllMids(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
