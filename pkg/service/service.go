// Package service composes market data, wallet state and order submission
// into the single object the daemon and API server talk to.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/exchange"
	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/storage"
	"github.com/uhyunpark/behype/pkg/util"
	"github.com/uhyunpark/behype/pkg/wallet"
)

// Snapshot names in the store.
const (
	snapQuotes   = "quotes"
	snapBalances = "balances"
)

var ErrUnknownAsset = errors.New("unknown asset")

type Deps struct {
	Registry *market.Registry
	Info     exchange.Info
	Trader   exchange.Trader
	Store    storage.Store
	Events   storage.EventLog
	Clock    util.Clock
	Log      *zap.Logger
}

type Service struct {
	cfg        params.Market
	user       string
	registry   *market.Registry
	reconciler *market.Reconciler
	info       exchange.Info
	trader     exchange.Trader
	store      storage.Store
	events     storage.EventLog
	clock      util.Clock
	log        *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	started   map[string]uint64 // per collection, bumped when a fetch begins
	applied   map[string]uint64 // generation of the cached value
	quotes    []market.AssetQuote
	quotesAt  time.Time
	balances  wallet.Balances
	observers []func([]market.AssetQuote)
}

// New wires the service for the wallet at user. Missing optional deps get
// in-memory or no-op stand-ins.
func New(cfg params.Market, user string, deps Deps) (*Service, error) {
	if deps.Info == nil || deps.Trader == nil {
		return nil, fmt.Errorf("service requires info and trader")
	}
	if deps.Registry == nil {
		deps.Registry = market.DefaultRegistry()
	}
	if !deps.Registry.Exists(cfg.ReferenceAsset) {
		return nil, fmt.Errorf("reference asset %s: %w", cfg.ReferenceAsset, ErrUnknownAsset)
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemStore()
	}
	if deps.Events == nil {
		deps.Events = storage.NopEventLog{}
	}
	if deps.Clock == nil {
		deps.Clock = util.RealClock{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	return &Service{
		cfg:        cfg,
		user:       user,
		registry:   deps.Registry,
		reconciler: market.NewReconciler(deps.Registry, cfg.ReferenceAsset, deps.Log.Named("reconciler")),
		info:       deps.Info,
		trader:     deps.Trader,
		store:      deps.Store,
		events:     deps.Events,
		clock:      deps.Clock,
		log:        deps.Log,
		started:    make(map[string]uint64),
		applied:    make(map[string]uint64),
	}, nil
}

func (s *Service) User() string               { return s.user }
func (s *Service) Registry() *market.Registry { return s.registry }

// OnQuotes registers fn to run after every successful quote refresh.
func (s *Service) OnQuotes(fn func([]market.AssetQuote)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// begin marks the start of a fetch and returns its generation.
func (s *Service) begin(collection string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[collection]++
	return s.started[collection]
}

// commit runs apply under the lock unless a later fetch already landed.
func (s *Service) commit(collection string, gen uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.applied[collection] {
		return false
	}
	s.applied[collection] = gen
	apply()
	return true
}

// Bootstrap restores cached snapshots and refines the registry from spot
// metadata. Neither step is fatal.
func (s *Service) Bootstrap(ctx context.Context) {
	var quotes []market.AssetQuote
	if ok, err := s.store.LoadSnapshot(snapQuotes, &quotes); err != nil {
		s.log.Warn("snapshot_load_failed", zap.String("name", snapQuotes), zap.Error(err))
	} else if ok {
		gen := s.begin(snapQuotes)
		s.commit(snapQuotes, gen, func() { s.quotes = quotes })
		s.log.Info("quotes_restored", zap.Int("count", len(quotes)))
	}

	var balances wallet.Balances
	if ok, err := s.store.LoadSnapshot(snapBalances, &balances); err != nil {
		s.log.Warn("snapshot_load_failed", zap.String("name", snapBalances), zap.Error(err))
	} else if ok {
		gen := s.begin(snapBalances)
		s.commit(snapBalances, gen, func() { s.balances = balances })
	}

	meta, err := s.info.SpotMeta(ctx)
	if err != nil {
		s.log.Warn("spot_meta_failed", zap.Error(err))
		return
	}
	s.log.Info("spot_meta_applied", zap.Int("updated", s.registry.ApplySpotMeta(meta)))
}

// Run refreshes quotes and balances every PollInterval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.Bootstrap(ctx)
	for {
		if _, err := s.RefreshQuotes(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("quotes_refresh_failed", zap.Error(err))
		}
		if _, err := s.RefreshBalances(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("balances_refresh_failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.cfg.PollInterval):
		}
	}
}
