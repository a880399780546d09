package reconcile

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

func TestReconcileActual_NoExistingRow(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st)
	ctx := context.Background()

	outcome, err := engine.ReconcileActual(ctx, "2025-01-01", "Valhalla", "Cantaloupe", 42.0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome.Kind)

	obs, err := st.GetObservation(ctx, "2025-01-01", "Valhalla", "Cantaloupe")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, model.StatusActual, obs.Status)
	assert.Equal(t, 42.0, obs.Price)

	// No error sample for a fresh insert.
	samples, err := st.QueryErrorWindow(ctx, "Valhalla", "Cantaloupe", "2024-01-01", "2025-12-31")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestReconcileActual_PromotesPrediction(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st)
	ctx := context.Background()

	_, err := st.InsertPredicted(ctx, model.PriceObservation{
		Date: "2025-01-01", Region: "RegionB", Crop: "Apple", Price: 100.0,
	})
	require.NoError(t, err)

	outcome, err := engine.ReconcileActual(ctx, "2025-01-01", "RegionB", "Apple", 120.0)
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, outcome.Kind)
	assert.Equal(t, 400.0, outcome.SquaredError)

	obs, err := st.GetObservation(ctx, "2025-01-01", "RegionB", "Apple")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActual, obs.Status)
	assert.Equal(t, 120.0, obs.Price)

	samples, err := st.QueryErrorWindow(ctx, "RegionB", "Apple", "2025-01-01", "2025-01-01")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 400.0, samples[0].SquaredError)
}

func TestReconcileActual_OverwritesActual(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st)
	ctx := context.Background()

	_, err := engine.ReconcileActual(ctx, "2025-01-01", "Valhalla", "Okra", 10.0)
	require.NoError(t, err)

	// Different price: overwrite, no error sample, still actual.
	outcome, err := engine.ReconcileActual(ctx, "2025-01-01", "Valhalla", "Okra", 11.0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOverwritten, outcome.Kind)

	// Same price: still an overwrite, not a no-op.
	outcome, err = engine.ReconcileActual(ctx, "2025-01-01", "Valhalla", "Okra", 11.0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOverwritten, outcome.Kind)

	obs, err := st.GetObservation(ctx, "2025-01-01", "Valhalla", "Okra")
	require.NoError(t, err)
	assert.Equal(t, 11.0, obs.Price)

	samples, err := st.QueryErrorWindow(ctx, "Valhalla", "Okra", "2024-01-01", "2025-12-31")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestReconcileActual_NegativeAndZeroPricesPassThrough(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st)
	ctx := context.Background()

	_, err := engine.ReconcileActual(ctx, "2025-01-01", "Valhalla", "Yam", 0.0)
	require.NoError(t, err)
	_, err = engine.ReconcileActual(ctx, "2025-01-08", "Valhalla", "Yam", -3.5)
	require.NoError(t, err)

	obs, err := st.GetObservation(ctx, "2025-01-08", "Valhalla", "Yam")
	require.NoError(t, err)
	assert.Equal(t, -3.5, obs.Price)
}

func TestReconcileActual_Validation(t *testing.T) {
	engine := NewEngine(store.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name   string
		date   string
		region string
		crop   string
		price  float64
	}{
		{"empty region", "2025-01-01", "", "Okra", 1},
		{"empty crop", "2025-01-01", "Valhalla", "", 1},
		{"blank crop", "2025-01-01", "Valhalla", "   ", 1},
		{"bad date", "01/01/2025", "Valhalla", "Okra", 1},
		{"empty date", "", "Valhalla", "Okra", 1},
		{"nan price", "2025-01-01", "Valhalla", "Okra", math.NaN()},
		{"inf price", "2025-01-01", "Valhalla", "Okra", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ReconcileActual(ctx, tt.date, tt.region, tt.crop, tt.price)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidKey))
		})
	}
}

func TestReconcileActual_ConcurrentSameKey_OnePromotion(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st)
	ctx := context.Background()

	_, err := st.InsertPredicted(ctx, model.PriceObservation{
		Date: "2025-01-01", Region: "Valhalla", Crop: "Cantaloupe", Price: 100.0,
	})
	require.NoError(t, err)

	// Two concurrent actual reports for the same key: exactly one may
	// observe the predicted row and log an error sample.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			_, err := engine.ReconcileActual(ctx, "2025-01-01", "Valhalla", "Cantaloupe", price)
			assert.NoError(t, err)
		}(110.0 + float64(i))
	}
	wg.Wait()

	samples, err := st.QueryErrorWindow(ctx, "Valhalla", "Cantaloupe", "2025-01-01", "2025-01-01")
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}
