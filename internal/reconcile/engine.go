// Package reconcile implements the actual-vs-predicted reconciliation
// path: promoting forecast rows when real prices arrive, accumulating
// squared errors, and deciding when a model has drifted far enough to
// retrain.
package reconcile

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// ErrInvalidKey marks a reconciliation rejected at validation, before
// any write. Surfaced to callers as a client error.
var ErrInvalidKey = eris.New("reconcile: invalid observation key")

// OutcomeKind classifies what a reconciliation did to the ledger.
type OutcomeKind string

const (
	// OutcomeInserted: no prior row; stored as a fresh actual.
	OutcomeInserted OutcomeKind = "inserted"
	// OutcomePromoted: a predicted row was replaced by the actual and a
	// squared error was logged.
	OutcomePromoted OutcomeKind = "promoted"
	// OutcomeOverwritten: the row was already actual; price overwritten
	// unconditionally, no error sample.
	OutcomeOverwritten OutcomeKind = "overwritten"
)

// Outcome reports the result of reconciling one actual price.
type Outcome struct {
	Kind         OutcomeKind
	SquaredError float64 // set only for OutcomePromoted
}

// Engine applies actual price reports to the ledger. The read-check-write
// sequence is serialized per (date, region, crop) key; writes to
// different keys proceed in parallel.
type Engine struct {
	store store.Store
	locks keyLocks
}

// NewEngine creates a reconciliation engine over the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// ReconcileActual applies one actual price observation.
//
// No existing row: insert as actual. Existing predicted row: log the
// squared error and promote to actual, atomically. Existing actual row:
// overwrite the price even if unchanged.
func (e *Engine) ReconcileActual(ctx context.Context, date, region, crop string, price float64) (Outcome, error) {
	if err := validateKey(date, region, crop, price); err != nil {
		return Outcome{}, err
	}

	unlock := e.locks.lock(date + "|" + region + "|" + crop)
	defer unlock()

	existing, err := e.store.GetObservation(ctx, date, region, crop)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "reconcile: lookup")
	}

	obs := model.PriceObservation{Date: date, Region: region, Crop: crop, Price: price, Status: model.StatusActual}

	switch {
	case existing == nil:
		if err := e.store.InsertActual(ctx, obs); err != nil {
			return Outcome{}, eris.Wrap(err, "reconcile: insert")
		}
		zap.L().Info("new actual price stored",
			zap.String("date", date), zap.String("region", region), zap.String("crop", crop),
			zap.Float64("price", price),
		)
		return Outcome{Kind: OutcomeInserted}, nil

	case existing.Status == model.StatusPredicted:
		squaredError := (price - existing.Price) * (price - existing.Price)
		sample := model.ErrorSample{
			Date: date, Region: region, Crop: crop, SquaredError: squaredError,
		}
		if err := e.store.PromoteObservation(ctx, obs, sample); err != nil {
			return Outcome{}, eris.Wrap(err, "reconcile: promote")
		}
		zap.L().Info("predicted price promoted to actual",
			zap.String("date", date), zap.String("region", region), zap.String("crop", crop),
			zap.Float64("predicted", existing.Price), zap.Float64("actual", price),
			zap.Float64("squared_error", squaredError),
		)
		return Outcome{Kind: OutcomePromoted, SquaredError: squaredError}, nil

	default:
		if err := e.store.OverwriteActual(ctx, obs); err != nil {
			return Outcome{}, eris.Wrap(err, "reconcile: overwrite")
		}
		if existing.Price != price {
			zap.L().Warn("actual price changed on re-report",
				zap.String("date", date), zap.String("region", region), zap.String("crop", crop),
				zap.Float64("old", existing.Price), zap.Float64("new", price),
			)
		}
		return Outcome{Kind: OutcomeOverwritten}, nil
	}
}

func validateKey(date, region, crop string, price float64) error {
	if strings.TrimSpace(region) == "" {
		return eris.Wrap(ErrInvalidKey, "region is required")
	}
	if strings.TrimSpace(crop) == "" {
		return eris.Wrap(ErrInvalidKey, "crop is required")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return eris.Wrapf(ErrInvalidKey, "date %q is not a valid %s date", date, model.DateLayout)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return eris.Wrap(ErrInvalidKey, "price must be finite")
	}
	return nil
}

// keyLocks serializes reconciliation per ledger key. Lock entries are
// kept for the process lifetime; the key space (weekly dates x regions
// x crops) is small.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
