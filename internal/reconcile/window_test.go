package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// seedSample promotes a throwaway predicted row so the error sample
// goes through the same store path production uses.
func seedSample(t *testing.T, st store.Store, region, crop, date string, squaredError float64) {
	t.Helper()
	ctx := context.Background()
	_, err := st.InsertPredicted(ctx, model.PriceObservation{Date: date, Region: region, Crop: crop, Price: 0})
	require.NoError(t, err)
	err = st.PromoteObservation(ctx,
		model.PriceObservation{Date: date, Region: region, Crop: crop, Price: 1},
		model.ErrorSample{Date: date, Region: region, Crop: crop, SquaredError: squaredError},
	)
	require.NoError(t, err)
}

func TestRollingRMSE_InsufficientData(t *testing.T) {
	st := store.NewMemory()
	w := NewWindow(st, 13, 10)
	ctx := context.Background()

	// 9 samples, all enormous: still insufficient, magnitude is irrelevant.
	for i := 0; i < 9; i++ {
		seedSample(t, st, "Valhalla", "Cantaloupe", fmt.Sprintf("2025-01-%02d", i+1), 1e9)
	}

	res, err := w.RollingRMSE(ctx, "Valhalla", "Cantaloupe", "2025-01-15")
	require.NoError(t, err)
	assert.False(t, res.Sufficient)
	assert.Equal(t, 9, res.SampleCount)
}

func TestRollingRMSE_Computation(t *testing.T) {
	st := store.NewMemory()
	w := NewWindow(st, 13, 3)
	ctx := context.Background()

	// Squared errors 4, 9, 36 -> mean 49/3 -> rmse sqrt(49/3).
	seedSample(t, st, "Valhalla", "Cantaloupe", "2025-01-01", 4)
	seedSample(t, st, "Valhalla", "Cantaloupe", "2025-01-08", 9)
	seedSample(t, st, "Valhalla", "Cantaloupe", "2025-01-15", 36)

	res, err := w.RollingRMSE(ctx, "Valhalla", "Cantaloupe", "2025-01-15")
	require.NoError(t, err)
	assert.True(t, res.Sufficient)
	assert.Equal(t, 3, res.SampleCount)
	assert.InDelta(t, 4.0414, res.RMSE, 0.001)
}

func TestRollingRMSE_Deterministic(t *testing.T) {
	st := store.NewMemory()
	w := NewWindow(st, 13, 1)
	ctx := context.Background()

	seedSample(t, st, "Valhalla", "Okra", "2025-02-01", 7.77)

	first, err := w.RollingRMSE(ctx, "Valhalla", "Okra", "2025-02-15")
	require.NoError(t, err)
	second, err := w.RollingRMSE(ctx, "Valhalla", "Okra", "2025-02-15")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRollingRMSE_WindowBoundary(t *testing.T) {
	st := store.NewMemory()
	w := NewWindow(st, 13, 1)
	ctx := context.Background()

	asOf := "2025-06-30"
	end, err := time.Parse(model.DateLayout, asOf)
	require.NoError(t, err)
	boundary := end.AddDate(0, 0, -7*13).Format(model.DateLayout)
	dayBefore := end.AddDate(0, 0, -7*13-1).Format(model.DateLayout)

	seedSample(t, st, "Valhalla", "Yam", boundary, 100)
	seedSample(t, st, "Valhalla", "Yam", dayBefore, 1e6)

	res, err := w.RollingRMSE(ctx, "Valhalla", "Yam", asOf)
	require.NoError(t, err)
	require.True(t, res.Sufficient)
	// Only the exact-boundary sample counts; the one-day-older sample is out.
	assert.Equal(t, 1, res.SampleCount)
	assert.InDelta(t, 10.0, res.RMSE, 1e-9)
}

func TestRollingRMSE_ConfigurableWindowLength(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	seedSample(t, st, "Valhalla", "Parsnip", "2025-01-01", 25)

	// 4-week window as of late March: sample has aged out.
	short := NewWindow(st, 4, 1)
	res, err := short.RollingRMSE(ctx, "Valhalla", "Parsnip", "2025-03-30")
	require.NoError(t, err)
	assert.False(t, res.Sufficient)

	// 13-week window still covers it.
	long := NewWindow(st, 13, 1)
	res, err = long.RollingRMSE(ctx, "Valhalla", "Parsnip", "2025-03-30")
	require.NoError(t, err)
	assert.True(t, res.Sufficient)
}

func TestRollingRMSE_BadAsOfDate(t *testing.T) {
	w := NewWindow(store.NewMemory(), 13, 10)
	_, err := w.RollingRMSE(context.Background(), "Valhalla", "Okra", "not-a-date")
	assert.Error(t, err)
}
