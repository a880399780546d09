package reconcile

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// Window computes the rolling RMSE over error samples in a trailing
// fixed-duration interval. Pure read: repeated calls with no new
// samples return identical results.
type Window struct {
	store          store.Store
	windowWeeks    int
	minErrorPoints int
}

// RMSEResult is the outcome of a rolling-window computation. When
// Sufficient is false the window held fewer than the configured minimum
// number of samples and RMSE is meaningless; this is the normal state
// during model warm-up, not an error.
type RMSEResult struct {
	RMSE        float64
	SampleCount int
	Sufficient  bool
}

// NewWindow creates a rolling error window. windowWeeks is the trailing
// interval length; minErrorPoints is the minimum sample count for a
// meaningful RMSE.
func NewWindow(st store.Store, windowWeeks, minErrorPoints int) *Window {
	return &Window{store: st, windowWeeks: windowWeeks, minErrorPoints: minErrorPoints}
}

// RollingRMSE computes sqrt(mean(squared_error)) over all samples for
// (region, crop) dated within [asOf - windowWeeks, asOf], both ends
// inclusive.
func (w *Window) RollingRMSE(ctx context.Context, region, crop, asOf string) (RMSEResult, error) {
	end, err := time.Parse(model.DateLayout, asOf)
	if err != nil {
		return RMSEResult{}, eris.Wrapf(ErrInvalidKey, "as-of date %q is not a valid %s date", asOf, model.DateLayout)
	}
	start := end.AddDate(0, 0, -7*w.windowWeeks)

	samples, err := w.store.QueryErrorWindow(ctx, region, crop, start.Format(model.DateLayout), asOf)
	if err != nil {
		return RMSEResult{}, eris.Wrap(err, "window: query error samples")
	}

	if len(samples) < w.minErrorPoints {
		return RMSEResult{SampleCount: len(samples)}, nil
	}

	var sum float64
	for _, s := range samples {
		sum += s.SquaredError
	}
	rmse := math.Sqrt(sum / float64(len(samples)))

	return RMSEResult{RMSE: rmse, SampleCount: len(samples), Sufficient: true}, nil
}
