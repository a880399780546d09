// Package forecast holds the fixed-lag price regression: fitting it
// from ledger history, persisting it as a per-(region, crop type)
// artifact, and producing weekly-ahead predictions from it.
package forecast

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
)

const (
	// numLags is how many trailing weekly prices feed a prediction.
	numLags = 4
	// numLeads is how many weeks ahead one prediction run covers.
	numLeads = 4
)

// Artifact is a fitted model for one (region, crop type) scope: one
// linear coefficient vector per lead horizon over an intercept plus
// the last numLags weekly prices.
type Artifact struct {
	Region       string         `json:"region"`
	CropType     model.CropType `json:"crop_type"`
	Lags         int            `json:"lags"`
	Coefficients [][]float64    `json:"coefficients"` // [numLeads][1+numLags]
	TrainedAt    time.Time      `json:"trained_at"`
	Samples      int            `json:"samples"`
}

// Predict maps the last numLags prices (oldest first) to numLeads
// future prices, one per week ahead.
func (a *Artifact) Predict(lags []float64) ([]float64, error) {
	if len(lags) != a.Lags {
		return nil, eris.Errorf("forecast: expected %d lag prices, got %d", a.Lags, len(lags))
	}
	if len(a.Coefficients) == 0 {
		return nil, eris.New("forecast: artifact has no coefficients")
	}

	out := make([]float64, len(a.Coefficients))
	for h, coefs := range a.Coefficients {
		if len(coefs) != a.Lags+1 {
			return nil, eris.Errorf("forecast: horizon %d has %d coefficients, want %d", h, len(coefs), a.Lags+1)
		}
		y := coefs[0]
		for i, lag := range lags {
			y += coefs[i+1] * lag
		}
		out[h] = y
	}
	return out, nil
}
