package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/util"
)

// RefreshQuotes fetches allMids and reconciles them into USD quotes.
// Concurrent callers share one fetch. Bad non-reference entries are logged
// and skipped; a bad reference price fails the refresh and keeps the cache.
func (s *Service) RefreshQuotes(ctx context.Context) ([]market.AssetQuote, error) {
	v, err, _ := s.group.Do(snapQuotes, func() (any, error) {
		gen := s.begin(snapQuotes)

		mids, err := s.info.AllMids(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch mids: %w", err)
		}
		quotes, err := s.reconciler.Reconcile(mids)
		if quotes == nil && err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		if err != nil {
			s.log.Warn("quotes_partial", zap.Error(err))
		}

		now := s.clock.Now()
		if !s.commit(snapQuotes, gen, func() {
			s.quotes = quotes
			s.quotesAt = now
		}) {
			return quotes, nil
		}
		if err := s.store.SaveSnapshot(snapQuotes, quotes); err != nil {
			s.log.Warn("snapshot_save_failed", zap.String("name", snapQuotes), zap.Error(err))
		}
		s.log.Debug("quotes_refreshed", zap.Int("count", len(quotes)), zap.Int("mids", len(mids)))
		s.notify(quotes)
		return quotes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]market.AssetQuote), nil
}

func (s *Service) notify(quotes []market.AssetQuote) {
	s.mu.RLock()
	observers := append([]func([]market.AssetQuote){}, s.observers...)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(quotes)
	}
}

// Quotes returns the cached quotes and when they were fetched. The time is
// zero for quotes restored from a snapshot.
func (s *Service) Quotes() ([]market.AssetQuote, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]market.AssetQuote(nil), s.quotes...), s.quotesAt
}

// Quote returns the cached quote for one asset.
func (s *Service) Quote(assetID string) (market.AssetQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.quotes {
		if q.AssetID == assetID {
			return q, true
		}
	}
	return market.AssetQuote{}, false
}

// Assets lists the registry.
func (s *Service) Assets() []market.AssetConfig {
	return s.registry.List()
}

// Candles returns the chart series for assetID over the timeframe's
// look-back window ending now.
func (s *Service) Candles(ctx context.Context, assetID string, tf market.Timeframe) ([]market.Candle, error) {
	if !s.registry.Exists(assetID) {
		return nil, fmt.Errorf("%s: %w", assetID, ErrUnknownAsset)
	}
	end := util.NowMillis(s.clock)
	start := end - uint64(tf.LookBack().Milliseconds())

	key := fmt.Sprintf("candles:%s:%s", assetID, tf)
	v, err, _ := s.group.Do(key, func() (any, error) {
		raw, err := s.info.Candles(ctx, assetID, string(tf), start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch candles: %w", err)
		}
		return market.ParseCandles(raw, s.log)
	})
	if err != nil {
		return nil, err
	}
	return v.([]market.Candle), nil
}
