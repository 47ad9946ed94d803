package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/crypto"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/util"
)

// Trader submits orders on behalf of the wallet. A returned error means the
// request never got an answer; a rejection is a SubmitResult with Success false.
type Trader interface {
	PlaceOrder(ctx context.Context, req *order.Request) (order.SubmitResult, error)
	CancelOrder(ctx context.Context, asset string, assetIndex uint32, oid uint64) (order.SubmitResult, error)
}

// GatewayResponse is the gateway's answer to a signed transaction.
type GatewayResponse struct {
	Status     string  `json:"status"` // resting, filled, cancelled, rejected
	OrderID    *uint64 `json:"oid,omitempty"`
	FilledSize *string `json:"filledSize,omitempty"`
	AvgPrice   *string `json:"avgPrice,omitempty"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// SignedTrader signs actions with the wallet key and posts them to the gateway.
type SignedTrader struct {
	signer *crypto.Signer
	typed  *crypto.TypedSigner
	url    string
	client *http.Client
	clock  util.Clock
	log    *zap.Logger

	mu        sync.Mutex
	lastNonce uint64
}

func NewSignedTrader(cfg params.Gateway, timeout time.Duration, signer *crypto.Signer, clock util.Clock, log *zap.Logger) *SignedTrader {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &SignedTrader{
		signer: signer,
		typed:  crypto.NewTypedSigner(crypto.DefaultDomain(cfg.ChainID)),
		url:    strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{Timeout: timeout},
		clock:  clock,
		log:    log,
	}
}

// nextNonce is the current time in ms, bumped so it strictly increases.
func (t *SignedTrader) nextNonce() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := util.NowMillis(t.clock)
	if n <= t.lastNonce {
		n = t.lastNonce + 1
	}
	t.lastNonce = n
	return n
}

// SignOrder builds the signed transaction for req without sending it.
func (t *SignedTrader) SignOrder(req *order.Request) (*SignedTransaction, error) {
	action := crypto.NewOrderAction(req, t.nextNonce(), t.signer.Address())
	sig, err := t.typed.SignOrder(t.signer, action)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Type:      TxTypeOrder,
		Order:     FromOrderAction(action),
		Signature: hexutil.Encode(sig),
	}, nil
}

func (t *SignedTrader) SignCancel(assetIndex uint32, oid uint64) (*SignedTransaction, error) {
	action := &crypto.CancelAction{Asset: assetIndex, OrderID: oid, Nonce: t.nextNonce(), Owner: t.signer.Address()}
	sig, err := t.typed.SignCancel(t.signer, action)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Type:      TxTypeCancel,
		Cancel:    FromCancelAction(action),
		Signature: hexutil.Encode(sig),
	}, nil
}

func (t *SignedTrader) PlaceOrder(ctx context.Context, req *order.Request) (order.SubmitResult, error) {
	tx, err := t.SignOrder(req)
	if err != nil {
		return order.SubmitResult{}, fmt.Errorf("sign order: %w", err)
	}
	t.log.Info("order_signed",
		zap.String("asset", req.Asset),
		zap.Stringer("side", req.Side),
		zap.String("px", req.PriceString),
		zap.String("sz", req.SizeString),
		zap.String("nonce", tx.Order.Nonce))

	resp, err := t.send(ctx, "/api/v1/orders", tx)
	if err != nil {
		return order.SubmitResult{}, err
	}
	res := resp.result()
	if res.Success && res.Message == "" {
		res.Message = placedMessage(req.Side, res.Filled())
	}
	return res, nil
}

func (t *SignedTrader) CancelOrder(ctx context.Context, asset string, assetIndex uint32, oid uint64) (order.SubmitResult, error) {
	tx, err := t.SignCancel(assetIndex, oid)
	if err != nil {
		return order.SubmitResult{}, fmt.Errorf("sign cancel: %w", err)
	}
	t.log.Info("cancel_signed", zap.String("asset", asset), zap.Uint64("oid", oid))

	resp, err := t.send(ctx, "/api/v1/orders/cancel", tx)
	if err != nil {
		return order.SubmitResult{}, err
	}
	res := resp.result()
	if res.Success && res.Message == "" {
		res.Message = "Order cancelled"
	}
	return res, nil
}

func (t *SignedTrader) send(ctx context.Context, path string, tx *SignedTransaction) (*GatewayResponse, error) {
	data, err := postJSON(ctx, t.client, t.url+path, tx)
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.Status < 500:
		// client errors still carry a structured rejection
		var resp GatewayResponse
		if jerr := json.Unmarshal([]byte(se.Body), &resp); jerr == nil && (resp.Error != "" || resp.Message != "") {
			resp.Status = "rejected"
			return &resp, nil
		}
		return nil, err
	case err != nil:
		return nil, err
	}

	var resp GatewayResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &resp, nil
}

func (r *GatewayResponse) result() order.SubmitResult {
	if r.Status == "rejected" || r.Error != "" {
		msg := r.Message
		if msg == "" {
			msg = r.Error
		}
		return order.SubmitResult{Success: false, Message: "Exchange error: " + msg}
	}
	return order.SubmitResult{
		Success:    true,
		Message:    r.Message,
		OrderID:    r.OrderID,
		FilledSize: r.FilledSize,
		AvgPrice:   r.AvgPrice,
	}
}

func placedMessage(side order.Side, filled bool) string {
	switch {
	case filled && side == order.Buy:
		return "Buy order filled"
	case filled:
		return "Sell order filled"
	case side == order.Buy:
		return "Buy order placed successfully"
	default:
		return "Sell order placed successfully"
	}
}
