package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/behype/pkg/history"
	"github.com/uhyunpark/behype/pkg/util"
	"github.com/uhyunpark/behype/pkg/wallet"
)

// RefreshBalances fetches the wallet's spot balances.
func (s *Service) RefreshBalances(ctx context.Context) (wallet.Balances, error) {
	v, err, _ := s.group.Do(snapBalances, func() (any, error) {
		gen := s.begin(snapBalances)

		raw, err := s.info.TokenBalances(ctx, s.user)
		if err != nil {
			return nil, fmt.Errorf("fetch balances: %w", err)
		}
		balances, err := wallet.ParseBalances(raw, s.log)
		if err != nil {
			return nil, err
		}

		if s.commit(snapBalances, gen, func() { s.balances = balances }) {
			if err := s.store.SaveSnapshot(snapBalances, balances); err != nil {
				s.log.Warn("snapshot_save_failed", zap.String("name", snapBalances), zap.Error(err))
			}
		}
		return balances, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(wallet.Balances), nil
}

// Balances returns the cached balances without fetching.
func (s *Service) Balances() wallet.Balances {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(wallet.Balances(nil), s.balances...)
}

// MaxFillsDays caps the fills lookback window.
const MaxFillsDays = 3650

// Fills returns the wallet's fills over the last daysBack days, newest first.
// daysBack <= 0 uses the configured default; larger values clamp to MaxFillsDays.
func (s *Service) Fills(ctx context.Context, daysBack int) ([]history.FillRecord, error) {
	if daysBack <= 0 {
		daysBack = s.cfg.FillsDaysBack
	}
	daysBack = min(daysBack, MaxFillsDays)
	end := util.NowMillis(s.clock)
	start := end - uint64((time.Duration(daysBack) * 24 * time.Hour).Milliseconds())

	v, err, _ := s.group.Do(fmt.Sprintf("fills:%d", daysBack), func() (any, error) {
		raw, err := s.info.UserFills(ctx, s.user, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch fills: %w", err)
		}
		fills, err := history.ParseFills(raw, s.log)
		if err != nil {
			return nil, err
		}
		history.SortFillsNewestFirst(fills)
		return fills, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]history.FillRecord), nil
}

// OpenOrders returns the wallet's resting orders, newest first.
func (s *Service) OpenOrders(ctx context.Context) ([]history.OpenOrderRecord, error) {
	v, err, _ := s.group.Do("orders", func() (any, error) {
		raw, err := s.info.OpenOrders(ctx, s.user)
		if err != nil {
			return nil, fmt.Errorf("fetch open orders: %w", err)
		}
		orders, err := history.ParseOpenOrders(raw, s.log)
		if err != nil {
			return nil, err
		}
		history.SortOrdersNewestFirst(orders)
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]history.OpenOrderRecord), nil
}
