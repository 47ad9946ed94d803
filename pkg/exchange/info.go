package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/market"
)

// Info is the read-only market and account data source. Account-scoped
// payloads are returned raw; the history and wallet projectors own parsing.
type Info interface {
	AllMids(ctx context.Context) (map[string]string, error)
	SpotMeta(ctx context.Context) (market.SpotMeta, error)
	TokenBalances(ctx context.Context, user string) ([]byte, error)
	UserFills(ctx context.Context, user string, startMs, endMs uint64) ([]byte, error)
	OpenOrders(ctx context.Context, user string) ([]byte, error)
	Candles(ctx context.Context, coin, interval string, startMs, endMs uint64) ([]byte, error)
}

// StatusError is a non-2xx response from an upstream endpoint.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.Status, e.Body)
}

const maxErrorBody = 256

// HTTPInfo queries the exchange's POST /info endpoint.
type HTTPInfo struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewHTTPInfo(cfg params.Info, log *zap.Logger) *HTTPInfo {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPInfo{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (h *HTTPInfo) post(ctx context.Context, body any) ([]byte, error) {
	return postJSON(ctx, h.client, h.url, body)
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(data)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: excerpt}
	}
	return data, nil
}

func (h *HTTPInfo) AllMids(ctx context.Context) (map[string]string, error) {
	data, err := h.post(ctx, map[string]string{"type": "allMids"})
	if err != nil {
		return nil, err
	}
	var mids map[string]string
	if err := json.Unmarshal(data, &mids); err != nil {
		return nil, fmt.Errorf("decode allMids: %w", err)
	}
	h.log.Debug("all_mids", zap.Int("count", len(mids)))
	return mids, nil
}

func (h *HTTPInfo) SpotMeta(ctx context.Context) (market.SpotMeta, error) {
	var meta market.SpotMeta
	data, err := h.post(ctx, map[string]string{"type": "spotMeta"})
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode spotMeta: %w", err)
	}
	return meta, nil
}

func (h *HTTPInfo) TokenBalances(ctx context.Context, user string) ([]byte, error) {
	return h.post(ctx, map[string]string{"type": "spotClearinghouseState", "user": user})
}

func (h *HTTPInfo) UserFills(ctx context.Context, user string, startMs, endMs uint64) ([]byte, error) {
	return h.post(ctx, map[string]any{
		"type":      "userFillsByTime",
		"user":      user,
		"startTime": startMs,
		"endTime":   endMs,
	})
}

func (h *HTTPInfo) OpenOrders(ctx context.Context, user string) ([]byte, error) {
	return h.post(ctx, map[string]string{"type": "frontendOpenOrders", "user": user})
}

func (h *HTTPInfo) Candles(ctx context.Context, coin, interval string, startMs, endMs uint64) ([]byte, error) {
	return h.post(ctx, map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": startMs,
			"endTime":   endMs,
		},
	})
}
