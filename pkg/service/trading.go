package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/storage"
	"github.com/uhyunpark/behype/pkg/util"
)

// PlaceParams is a limit order as entered by the user. For buys Quantity is
// the quote amount to spend; for sells it is the base amount.
type PlaceParams struct {
	Asset       string            `json:"asset" validate:"required,startswith=@"`
	Side        order.Side        `json:"side" validate:"required"`
	Quantity    string            `json:"quantity" validate:"required"`
	Price       string            `json:"price" validate:"required"`
	TimeInForce order.TimeInForce `json:"timeInForce"`
}

// Placement is the outcome of an accepted submission.
type Placement struct {
	EntryID string             `json:"entryId"`
	Request *order.Request     `json:"request"`
	Result  order.SubmitResult `json:"result"`
}

// Available is the free balance backing a new order on side: the quote coin
// for buys and the asset's base coin for sells.
func (s *Service) Available(asset market.AssetConfig, side order.Side) decimal.Decimal {
	balances := s.Balances()
	if side == order.Buy {
		quote := asset.Quote
		if quote == "" {
			quote = s.cfg.QuoteCoin
		}
		return balances.Available(quote)
	}
	coins := asset.BaseCoins()
	if len(coins) == 0 {
		return decimal.Zero
	}
	return balances.Available(coins[0], coins[1:]...)
}

// PlaceOrder validates p against the wallet's balances and submits it once.
// Validation failures return *order.ValidationError or *market.ParseError
// without any network call. Exchange rejections and transport failures
// return *order.ExternalFailure. Nothing is retried.
func (s *Service) PlaceOrder(ctx context.Context, p PlaceParams) (*Placement, error) {
	asset, err := s.registry.Get(p.Asset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Asset, ErrUnknownAsset)
	}
	if s.Balances() == nil {
		if _, err := s.RefreshBalances(ctx); err != nil {
			s.log.Warn("balances_refresh_failed", zap.Error(err))
		}
	}

	req, err := order.Build(p.Side, p.Quantity, p.Price, s.Available(asset, p.Side), asset, p.TimeInForce)
	if err != nil {
		s.log.Info("order_rejected_locally", zap.String("asset", p.Asset), zap.Stringer("side", p.Side), zap.Error(err))
		return nil, err
	}

	entry := &storage.Entry{
		Time:    util.NowMillis(s.clock),
		Kind:    storage.KindPlace,
		Asset:   req.Asset,
		Request: req,
	}
	res, sendErr := s.trader.PlaceOrder(ctx, req)
	failure := s.settle(entry, res, sendErr)

	s.log.Info("order_submitted",
		zap.String("entry", entry.ID),
		zap.String("asset", req.Asset),
		zap.Stringer("side", req.Side),
		zap.String("px", req.PriceString),
		zap.String("sz", req.SizeString),
		zap.Bool("success", failure == nil),
		zap.String("message", res.Message))
	if failure != nil {
		return nil, failure
	}

	if _, err := s.RefreshBalances(ctx); err != nil {
		s.log.Warn("balances_refresh_failed", zap.Error(err))
	}
	return &Placement{EntryID: entry.ID, Request: req, Result: res}, nil
}

// CancelOrder cancels a resting order by exchange order id.
func (s *Service) CancelOrder(ctx context.Context, assetID string, oid uint64) (order.SubmitResult, error) {
	asset, err := s.registry.Get(assetID)
	if err != nil {
		return order.SubmitResult{}, fmt.Errorf("%s: %w", assetID, ErrUnknownAsset)
	}

	entry := &storage.Entry{
		Time:    util.NowMillis(s.clock),
		Kind:    storage.KindCancel,
		Asset:   asset.ID,
		OrderID: oid,
	}
	res, sendErr := s.trader.CancelOrder(ctx, asset.ID, asset.Index, oid)
	failure := s.settle(entry, res, sendErr)

	s.log.Info("order_cancel",
		zap.String("entry", entry.ID),
		zap.String("asset", asset.ID),
		zap.Uint64("oid", oid),
		zap.Bool("success", failure == nil))
	if failure != nil {
		return res, failure
	}
	return res, nil
}

// settle journals the attempt and maps its outcome to an external failure.
func (s *Service) settle(entry *storage.Entry, res order.SubmitResult, sendErr error) *order.ExternalFailure {
	var failure *order.ExternalFailure
	switch {
	case sendErr != nil:
		entry.Error = sendErr.Error()
		failure = &order.ExternalFailure{Raw: sendErr.Error(), Message: "Exchange unavailable - please try again"}
	case !res.Success:
		failure = res.Err().(*order.ExternalFailure)
	}
	entry.Result = res

	if err := s.store.Append(entry); err != nil {
		s.log.Error("journal_append_failed", zap.Error(err))
	}

	event := "ORDER_SUBMIT"
	if entry.Kind == storage.KindCancel {
		event = "ORDER_CANCEL"
	}
	data := map[string]any{"entry": entry.ID, "asset": entry.Asset, "success": failure == nil}
	if oid, ok := entry.AssignedOrderID(); ok {
		data["oid"] = oid
	}
	if failure != nil {
		data["error"] = failure.Raw
	}
	if err := s.events.Append(event, data); err != nil {
		s.log.Warn("event_log_failed", zap.Error(err))
	}
	return failure
}

// Journal returns the most recent submissions, newest first.
func (s *Service) Journal(limit int) ([]storage.Entry, error) {
	return s.store.Recent(limit)
}
