package forecast

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// ErrUnknownCrop is returned for crops absent from the catalog; no
// model scope covers them.
var ErrUnknownCrop = eris.New("forecast: crop not in catalog")

// ErrInsufficientHistory is returned when the actual price history is
// too short to fit or predict from.
var ErrInsufficientHistory = eris.New("forecast: insufficient actual price history")

// Trainer re-fits the lag regression for one (region, crop) scope from
// all actual observations and atomically replaces the artifact. It
// satisfies retrain.Trainer.
type Trainer struct {
	store      store.Store
	artifacts  *ArtifactStore
	catalog    *model.Catalog
	minSamples int
}

// NewTrainer creates a trainer. minSamples is the minimum number of
// usable training rows required before a re-fit replaces the deployed
// artifact.
func NewTrainer(st store.Store, artifacts *ArtifactStore, catalog *model.Catalog, minSamples int) *Trainer {
	return &Trainer{store: st, artifacts: artifacts, catalog: catalog, minSamples: minSamples}
}

// Retrain re-fits the model for (region, crop). A deployed artifact
// must already exist for the scope: retraining refreshes models, it
// does not bootstrap them. Safe to run back-to-back; refitting on the
// same history yields the same artifact.
func (t *Trainer) Retrain(ctx context.Context, region, crop string) error {
	cropType, ok := t.catalog.TypeOf(crop)
	if !ok {
		return eris.Wrapf(ErrUnknownCrop, "%q", crop)
	}
	if !t.artifacts.Exists(region, cropType) {
		return eris.Wrapf(ErrArtifactNotFound, "%s/%s", region, cropType)
	}

	points, err := t.store.ActualPriceHistory(ctx, region, crop)
	if err != nil {
		return eris.Wrap(err, "forecast: fetch history")
	}

	rows := buildTrainingSet(points)
	if len(rows) < t.minSamples {
		return eris.Wrapf(ErrInsufficientHistory, "%d usable rows for %s/%s, need %d", len(rows), region, crop, t.minSamples)
	}

	coefficients, err := fit(rows)
	if err != nil {
		return err
	}

	artifact := &Artifact{
		Region:       region,
		CropType:     cropType,
		Lags:         numLags,
		Coefficients: coefficients,
		TrainedAt:    time.Now().UTC(),
		Samples:      len(rows),
	}
	if err := t.artifacts.Save(artifact); err != nil {
		return err
	}

	zap.L().Info("model artifact replaced",
		zap.String("region", region), zap.String("crop", crop),
		zap.String("crop_type", string(cropType)), zap.Int("samples", len(rows)),
	)
	return nil
}
