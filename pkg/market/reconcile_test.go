package market

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func quoteByID(qs []AssetQuote, id string) (AssetQuote, bool) {
	for _, q := range qs {
		if q.AssetID == id {
			return q, true
		}
	}
	return AssetQuote{}, false
}

func TestReconcileScenario(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", zap.NewNop())

	quotes, err := r.Reconcile(map[string]string{
		"@142": "118225.00",
		"@150": "0.00085",
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	apt, ok := quoteByID(quotes, "@150")
	require.True(t, ok)
	assert.Equal(t, "APT/USDC", apt.DisplayName)
	assert.Equal(t, "100.49", apt.Formatted)

	btc, ok := quoteByID(quotes, "@142")
	require.True(t, ok)
	assert.Equal(t, "BTC/USDC", btc.DisplayName)
	assert.Equal(t, "118225.00", btc.Formatted)
}

func TestReconcileRoundingCarriesIntoNextBand(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", nil)

	quotes, err := r.Reconcile(map[string]string{
		"@142": "100",
		"@151": "0.0099999996", // ratio -> 0.99999996
		"@152": "0.0000999999996",
	})
	require.NoError(t, err)

	q, ok := quoteByID(quotes, "@151")
	require.True(t, ok)
	assert.True(t, q.Price.Equal(one), "price %s", q.Price)
	assert.Equal(t, "1.00", q.Formatted)

	// 0.00999999996 rounds to 0.010000 at six places, so four apply.
	q, ok = quoteByID(quotes, "@152")
	require.True(t, ok)
	assert.Equal(t, "0.0100", q.Formatted)
}

func TestReconcileBands(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"@142", "@143", "@144", "@145", "@146", "@147"} {
		idx, _ := ParseAssetIndex(id)
		require.NoError(t, reg.Register(AssetConfig{ID: id, Index: idx, Name: id + "/USDC", TickSize: DefaultTickSize}))
	}
	r := NewReconciler(reg, "@142", nil)

	quotes, err := r.Reconcile(map[string]string{
		"@142": "100000",
		"@143": "0.95",     // stable band, unchanged
		"@144": "1.1",      // stable band upper edge
		"@145": "0.5",      // ratio -> 50000
		"@146": "0.000001", // below ratio floor, unchanged
		"@147": "3500.123", // >= 1, unchanged
	})
	require.NoError(t, err)

	want := map[string]string{
		"@143": "0.9500",
		"@144": "1.10",
		"@145": "50000.00",
		"@146": "0.000001",
		"@147": "3500.12",
	}
	for id, formatted := range want {
		q, ok := quoteByID(quotes, id)
		require.True(t, ok, id)
		assert.Equal(t, formatted, q.Formatted, id)
	}
}

func TestReconcileRatioBandMatchesProduct(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", nil)
	ref := d("118225")

	for _, ratio := range []string{"0.00002", "0.0003", "0.012", "0.5", "0.89"} {
		quotes, err := r.Reconcile(map[string]string{"@142": "118225", "@143": ratio})
		require.NoError(t, err)
		q, _ := quoteByID(quotes, "@143")

		expected := d(ratio).Mul(ref)
		places := QuoteDecimals(expected)
		assert.Equal(t, expected.StringFixed(places), q.Formatted, ratio)
	}
}

func TestReconcileDropsUnknownAssets(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", nil)

	quotes, err := r.Reconcile(map[string]string{
		"@142": "118225",
		"@999": "0.5",
		"BTC":  "118230",
		"@1":   "12",
	})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "@142", quotes[0].AssetID)
}

func TestReconcileReferenceFailures(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", nil)

	_, err := r.Reconcile(map[string]string{"@150": "0.00085"})
	assert.Error(t, err)

	_, err = r.Reconcile(map[string]string{"@142": "n/a"})
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))

	_, err = r.Reconcile(map[string]string{"@142": "0"})
	assert.Error(t, err)
}

func TestReconcileReportsBadEntriesButKeepsGoodOnes(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", nil)

	quotes, err := r.Reconcile(map[string]string{
		"@142": "118225",
		"@143": "garbage",
		"@144": "",
		"@150": "0.00085",
	})
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)

	require.Len(t, quotes, 2)
	assert.Equal(t, "@142", quotes[0].AssetID)
	assert.Equal(t, "@150", quotes[1].AssetID)
}

func TestReconcileAuthoritativeDenomination(t *testing.T) {
	reg := DefaultRegistry()
	sol, _ := reg.Get("@144")
	sol.Denomination = DenomUSD
	require.NoError(t, reg.Upsert(sol))

	r := NewReconciler(reg, "@142", nil)
	quotes, err := r.Reconcile(map[string]string{"@142": "100000", "@144": "0.5"})
	require.NoError(t, err)

	q, _ := quoteByID(quotes, "@144")
	assert.Equal(t, "0.5000", q.Formatted)
}

func TestReconciledPriceSurvivesReformat(t *testing.T) {
	r := NewReconciler(DefaultRegistry(), "@142", nil)
	quotes, err := r.Reconcile(map[string]string{
		"@142": "118225.004",
		"@143": "0.0321987",
		"@144": "0.00000712",
		"@145": "0.98765",
	})
	require.NoError(t, err)

	for _, q := range quotes {
		reparsed, err := ParseDecimal(q.AssetID, q.Formatted)
		require.NoError(t, err)
		assert.True(t, reparsed.Equal(q.Price), q.AssetID)
		assert.Equal(t, q.Formatted, reparsed.StringFixed(QuoteDecimals(reparsed)), q.AssetID)
	}
}
