package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/exchange"
	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/storage"
	"github.com/uhyunpark/behype/pkg/util"
)

var testNow = time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)

const testUser = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

// gatedInfo wraps MockInfo, counting allMids calls and optionally blocking them.
type gatedInfo struct {
	*exchange.MockInfo
	calls atomic.Int32
	gate  chan struct{}
	mids  map[string]string

	fillsStart atomic.Uint64
	fillsEnd   atomic.Uint64
}

func (g *gatedInfo) AllMids(ctx context.Context) (map[string]string, error) {
	g.calls.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	if g.mids != nil {
		return g.mids, nil
	}
	return g.MockInfo.AllMids(ctx)
}

func (g *gatedInfo) UserFills(ctx context.Context, user string, startMs, endMs uint64) ([]byte, error) {
	g.fillsStart.Store(startMs)
	g.fillsEnd.Store(endMs)
	return g.MockInfo.UserFills(ctx, user, startMs, endMs)
}

// countingTrader delegates to MockTrader unless err is set.
type countingTrader struct {
	exchange.MockTrader
	places atomic.Int32
	err    error
}

func (c *countingTrader) PlaceOrder(ctx context.Context, req *order.Request) (order.SubmitResult, error) {
	c.places.Add(1)
	if c.err != nil {
		return order.SubmitResult{}, c.err
	}
	return c.MockTrader.PlaceOrder(ctx, req)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Append(event string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	svc    *Service
	info   *gatedInfo
	trader *countingTrader
	store  *storage.MemStore
	events *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := util.FixedClock{At: testNow}
	f := &fixture{
		info:   &gatedInfo{MockInfo: exchange.NewMockInfo(clock)},
		trader: &countingTrader{},
		store:  storage.NewMemStore(),
		events: &recordingEvents{},
	}
	svc, err := New(params.Default().Market, testUser, Deps{
		Info:   f.info,
		Trader: f.trader,
		Store:  f.store,
		Events: f.events,
		Clock:  clock,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(params.Default().Market, testUser, Deps{})
	assert.Error(t, err)

	cfg := params.Default().Market
	cfg.ReferenceAsset = "@9999"
	_, err = New(cfg, testUser, Deps{Info: exchange.NewMockInfo(nil), Trader: exchange.MockTrader{}})
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestRefreshQuotes(t *testing.T) {
	f := newFixture(t)
	var observed [][]market.AssetQuote
	f.svc.OnQuotes(func(q []market.AssetQuote) { observed = append(observed, q) })

	quotes, err := f.svc.RefreshQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 4)
	assert.Equal(t, "@142", quotes[0].AssetID)
	assert.Equal(t, "118225.00", quotes[0].Formatted)

	cached, at := f.svc.Quotes()
	assert.Equal(t, quotes, cached)
	assert.Equal(t, testNow, at)
	require.Len(t, observed, 1)

	eth, ok := f.svc.Quote("@143")
	require.True(t, ok)
	assert.Equal(t, "3842.31", eth.Formatted)

	var snap []market.AssetQuote
	ok, err = f.store.LoadSnapshot(snapQuotes, &snap)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snap, 4)
}

func TestRefreshQuotesReferenceFailureKeepsCache(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RefreshQuotes(context.Background())
	require.NoError(t, err)

	f.info.mids = map[string]string{"@143": "0.03"}
	_, err = f.svc.RefreshQuotes(context.Background())
	require.Error(t, err)

	cached, _ := f.svc.Quotes()
	assert.Len(t, cached, 4)
}

func TestRefreshQuotesSharesInFlightFetch(t *testing.T) {
	f := newFixture(t)
	f.info.gate = make(chan struct{})

	var wg sync.WaitGroup
	results := make([][]market.AssetQuote, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := f.svc.RefreshQuotes(context.Background())
			assert.NoError(t, err)
			results[i] = q
		}(i)
	}

	// let the callers pile up behind the first fetch
	require.Eventually(t, func() bool { return f.info.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.info.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.info.calls.Load())
	for _, r := range results {
		assert.Len(t, r, 4)
	}
}

func TestStaleFetchNeverOverwritesNewer(t *testing.T) {
	f := newFixture(t)
	older := f.svc.begin("balances")
	newer := f.svc.begin("balances")

	assert.True(t, f.svc.commit("balances", newer, func() {}))
	applied := false
	assert.False(t, f.svc.commit("balances", older, func() { applied = true }))
	assert.False(t, applied)
}

func TestPlaceOrderValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, PlaceParams{Asset: "@142", Side: order.Buy, Quantity: "6000", Price: "118000"})
	assert.ErrorIs(t, err, order.ErrInsufficientBalance)

	_, err = f.svc.PlaceOrder(ctx, PlaceParams{Asset: "@142", Side: order.Sell, Quantity: "-1", Price: "118000"})
	assert.ErrorIs(t, err, order.ErrNotPositive)

	_, err = f.svc.PlaceOrder(ctx, PlaceParams{Asset: "@142", Side: order.Buy, Quantity: "ten", Price: "118000"})
	var pe *market.ParseError
	assert.True(t, errors.As(err, &pe))

	_, err = f.svc.PlaceOrder(ctx, PlaceParams{Asset: "@4242", Side: order.Buy, Quantity: "10", Price: "1"})
	assert.ErrorIs(t, err, ErrUnknownAsset)

	assert.Equal(t, int32(0), f.trader.places.Load())
	entries, err := f.svc.Journal(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPlaceOrderSuccess(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.PlaceOrder(context.Background(), PlaceParams{Asset: "@142", Side: order.Buy, Quantity: "11", Price: "118225.4"})
	require.NoError(t, err)
	assert.Equal(t, "118225", p.Request.PriceString)
	assert.Equal(t, "0.00009", p.Request.SizeString)
	require.NotNil(t, p.Result.OrderID)
	assert.Equal(t, exchange.MockBuyOrderID, *p.Result.OrderID)
	assert.Equal(t, "Buy order placed successfully", p.Result.Message)

	entries, err := f.svc.Journal(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, p.EntryID, entries[0].ID)
	assert.Equal(t, storage.KindPlace, entries[0].Kind)

	e, ok, err := f.store.ByOrderID(exchange.MockBuyOrderID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, p.EntryID, e.ID)
	assert.Equal(t, []string{"ORDER_SUBMIT"}, f.events.events)
}

func TestPlaceOrderSellUsesBaseBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 0.05 UBTC held
	_, err := f.svc.PlaceOrder(ctx, PlaceParams{Asset: "@142", Side: order.Sell, Quantity: "0.06", Price: "118000"})
	assert.ErrorIs(t, err, order.ErrInsufficientBalance)

	p, err := f.svc.PlaceOrder(ctx, PlaceParams{Asset: "@142", Side: order.Sell, Quantity: "0.00008", Price: "118000"})
	require.NoError(t, err)
	assert.Equal(t, exchange.MockSellOrderID, *p.Result.OrderID)
	assert.Equal(t, "Sell order filled", p.Result.Message)
}

func TestPlaceOrderExternalFailures(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		sendErr  error
		want     string
	}{
		{"canned timeout", "999", nil, exchange.MsgNetworkTimeout},
		{"canned balance", "1500", nil, exchange.MsgInsufficientBalance},
		{"transport", "11", errors.New("dial tcp: connection refused"), "Exchange unavailable - please try again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.trader.err = tt.sendErr

			_, err := f.svc.PlaceOrder(context.Background(), PlaceParams{Asset: "@142", Side: order.Buy, Quantity: tt.quantity, Price: "118225"})
			var ef *order.ExternalFailure
			require.ErrorAs(t, err, &ef)
			assert.Equal(t, tt.want, ef.Message)
			assert.Equal(t, int32(1), f.trader.places.Load(), "never retried")

			entries, err := f.svc.Journal(0)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.False(t, entries[0].Result.Success)
			if tt.sendErr != nil {
				assert.Equal(t, tt.sendErr.Error(), entries[0].Error)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CancelOrder(ctx, "@142", 77)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = f.svc.CancelOrder(ctx, "@142", 0)
	var ef *order.ExternalFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "unknown order", ef.Message)

	_, err = f.svc.CancelOrder(ctx, "@1", 77)
	assert.ErrorIs(t, err, ErrUnknownAsset)

	entries, err := f.svc.Journal(0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, []string{"ORDER_CANCEL", "ORDER_CANCEL"}, f.events.events)
}

func TestFillsAndOpenOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fills, err := f.svc.Fills(ctx, 0)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Greater(t, fills[0].Time, fills[1].Time)
	assert.Equal(t, exchange.MockBuyOrderID, fills[0].OrderID)

	orders, err := f.svc.OpenOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestFillsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := uint64((24 * time.Hour).Milliseconds())
	end := uint64(testNow.UnixMilli())

	_, err := f.svc.Fills(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, end, f.info.fillsEnd.Load())
	assert.Equal(t, end-7*day, f.info.fillsStart.Load())

	fills, err := f.svc.Fills(ctx, 1_000_000)
	require.NoError(t, err)
	assert.Len(t, fills, 2)
	assert.Equal(t, end-MaxFillsDays*day, f.info.fillsStart.Load())
}

func TestCandles(t *testing.T) {
	f := newFixture(t)

	candles, err := f.svc.Candles(context.Background(), "@142", market.Timeframe1h)
	require.NoError(t, err)
	assert.Len(t, candles, 48)

	_, err = f.svc.Candles(context.Background(), "@4242", market.Timeframe1h)
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestBootstrapAppliesSpotMetaAndSnapshots(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RefreshQuotes(context.Background())
	require.NoError(t, err)

	// a second service on the same store starts with the saved quotes
	svc, err := New(params.Default().Market, testUser, Deps{Info: f.info, Trader: f.trader, Store: f.store})
	require.NoError(t, err)
	svc.Bootstrap(context.Background())

	cached, at := svc.Quotes()
	assert.Len(t, cached, 4)
	assert.True(t, at.IsZero())

	eth, err := svc.Registry().Get("@143")
	require.NoError(t, err)
	assert.Equal(t, int32(4), eth.LotPrecision)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	var rounds atomic.Int32
	f.svc.OnQuotes(func([]market.AssetQuote) {
		if rounds.Add(1) == 3 {
			cancel()
		}
	})

	err := f.svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, rounds.Load(), int32(3))
	assert.NotEmpty(t, f.svc.Balances())
}
