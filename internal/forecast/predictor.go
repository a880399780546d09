package forecast

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// Prediction is one future price emitted by a forecast run.
type Prediction struct {
	Index int     `json:"prediction_index"`
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Forecaster produces weekly-ahead predictions from the deployed
// artifact and records them in the ledger as predicted rows.
type Forecaster struct {
	store     store.Store
	artifacts *ArtifactStore
	catalog   *model.Catalog
}

// NewForecaster creates a forecaster.
func NewForecaster(st store.Store, artifacts *ArtifactStore, catalog *model.Catalog) *Forecaster {
	return &Forecaster{store: st, artifacts: artifacts, catalog: catalog}
}

// PredictPrices forecasts the next numLeads weekly prices for
// (region, crop) from its last numLags actual observations, stores
// them as predicted rows (never clobbering existing keys), and returns
// them. Prices are clamped at zero and rounded to two decimals.
func (f *Forecaster) PredictPrices(ctx context.Context, region, crop string) ([]Prediction, error) {
	cropType, ok := f.catalog.TypeOf(crop)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownCrop, "%q", crop)
	}

	recent, err := f.store.RecentActualPrices(ctx, region, crop, numLags)
	if err != nil {
		return nil, eris.Wrap(err, "forecast: fetch recent prices")
	}
	if len(recent) < numLags {
		return nil, eris.Wrapf(ErrInsufficientHistory, "%d actual weeks for %s/%s, need %d", len(recent), region, crop, numLags)
	}

	artifact, err := f.artifacts.Load(region, cropType)
	if err != nil {
		return nil, err
	}

	lags := make([]float64, numLags)
	for i, p := range recent {
		lags[i] = p.Price
	}
	latestDate, err := time.Parse(model.DateLayout, recent[len(recent)-1].Date)
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: bad ledger date %q", recent[len(recent)-1].Date)
	}

	raw, err := artifact.Predict(lags)
	if err != nil {
		return nil, err
	}

	predictions := make([]Prediction, len(raw))
	for i, price := range raw {
		cleaned := math.Round(math.Max(0, price)*100) / 100
		futureDate := latestDate.AddDate(0, 0, 7*(i+1)).Format(model.DateLayout)
		predictions[i] = Prediction{Index: i, Date: futureDate, Price: cleaned}

		if _, err := f.store.InsertPredicted(ctx, model.PriceObservation{
			Date: futureDate, Region: region, Crop: crop, Price: cleaned,
		}); err != nil {
			return nil, eris.Wrap(err, "forecast: store prediction")
		}
	}

	zap.L().Info("predictions generated",
		zap.String("region", region), zap.String("crop", crop),
		zap.String("latest_actual", recent[len(recent)-1].Date),
		zap.Int("horizons", len(predictions)),
	)
	return predictions, nil
}
