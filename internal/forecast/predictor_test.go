package forecast

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

func newTestForecaster(t *testing.T, st store.Store) (*Forecaster, *ArtifactStore) {
	t.Helper()
	artifacts, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	return NewForecaster(st, artifacts, model.DefaultCatalog()), artifacts
}

func TestForecaster_PredictPrices(t *testing.T) {
	st := store.NewMemory()
	f, artifacts := newTestForecaster(t, st)
	ctx := context.Background()

	seedActualHistory(t, st, "Valhalla", "Cantaloupe", 4, func(int) float64 { return 42 })
	// Identity-ish artifact: each horizon echoes one lag.
	require.NoError(t, artifacts.Save(testArtifact("Valhalla")))

	preds, err := f.PredictPrices(ctx, "Valhalla", "Cantaloupe")
	require.NoError(t, err)
	require.Len(t, preds, numLeads)

	// History ends 2025-01-22; predictions step weekly from there.
	assert.Equal(t, 0, preds[0].Index)
	assert.Equal(t, "2025-01-29", preds[0].Date)
	assert.Equal(t, "2025-02-05", preds[1].Date)
	assert.Equal(t, 42.0, preds[0].Price)

	// Predictions land in the ledger as predicted rows.
	obs, err := st.GetObservation(ctx, "2025-01-29", "Valhalla", "Cantaloupe")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, model.StatusPredicted, obs.Status)
	assert.Equal(t, 42.0, obs.Price)
}

func TestForecaster_PredictPrices_NeverClobbersExistingRows(t *testing.T) {
	st := store.NewMemory()
	f, artifacts := newTestForecaster(t, st)
	ctx := context.Background()

	seedActualHistory(t, st, "Valhalla", "Cantaloupe", 4, func(int) float64 { return 42 })
	require.NoError(t, artifacts.Save(testArtifact("Valhalla")))

	// An actual price is already on record for the first forecast week.
	require.NoError(t, st.InsertActual(ctx, model.PriceObservation{
		Date: "2025-01-29", Region: "Valhalla", Crop: "Cantaloupe", Price: 99,
	}))

	_, err := f.PredictPrices(ctx, "Valhalla", "Cantaloupe")
	require.NoError(t, err)

	obs, err := st.GetObservation(ctx, "2025-01-29", "Valhalla", "Cantaloupe")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActual, obs.Status)
	assert.Equal(t, 99.0, obs.Price)
}

func TestForecaster_PredictPrices_ClampsNegative(t *testing.T) {
	st := store.NewMemory()
	f, artifacts := newTestForecaster(t, st)
	ctx := context.Background()

	seedActualHistory(t, st, "Valhalla", "Cantaloupe", 4, func(int) float64 { return 1 })

	a := testArtifact("Valhalla")
	for h := range a.Coefficients {
		a.Coefficients[h] = []float64{-100, 0, 0, 0, 0} // always predicts -100
	}
	require.NoError(t, artifacts.Save(a))

	preds, err := f.PredictPrices(ctx, "Valhalla", "Cantaloupe")
	require.NoError(t, err)
	for _, p := range preds {
		assert.Equal(t, 0.0, p.Price)
	}
}

func TestForecaster_PredictPrices_UnknownCrop(t *testing.T) {
	f, _ := newTestForecaster(t, store.NewMemory())

	_, err := f.PredictPrices(context.Background(), "Valhalla", "Moon Cheese")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownCrop))
}

func TestForecaster_PredictPrices_InsufficientHistory(t *testing.T) {
	st := store.NewMemory()
	f, artifacts := newTestForecaster(t, st)

	seedActualHistory(t, st, "Valhalla", "Cantaloupe", 3, func(int) float64 { return 42 })
	require.NoError(t, artifacts.Save(testArtifact("Valhalla")))

	_, err := f.PredictPrices(context.Background(), "Valhalla", "Cantaloupe")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientHistory))
}

func TestForecaster_PredictPrices_MissingArtifact(t *testing.T) {
	st := store.NewMemory()
	f, _ := newTestForecaster(t, st)

	seedActualHistory(t, st, "Valhalla", "Cantaloupe", 4, func(int) float64 { return 42 })

	_, err := f.PredictPrices(context.Background(), "Valhalla", "Cantaloupe")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrArtifactNotFound))
}
