package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
)

// ErrNotPredicted is returned by PromoteObservation when the target row
// is missing or already actual. Promotion is only valid against a live
// predicted row; callers decide the outcome before promoting, so hitting
// this error means a concurrent writer got there first.
var ErrNotPredicted = eris.New("store: observation is not a live prediction")

// Store is the persistence boundary for the price ledger, the
// append-only error-sample log, and weather reports. Both tables
// support range scans by (region, crop, date); dates are ISO strings
// so lexicographic order is chronological order.
type Store interface {
	// Price ledger. One live row per (date, region, crop).
	GetObservation(ctx context.Context, date, region, crop string) (*model.PriceObservation, error)
	InsertActual(ctx context.Context, obs model.PriceObservation) error
	OverwriteActual(ctx context.Context, obs model.PriceObservation) error
	// PromoteObservation flips a predicted row to actual and appends the
	// error sample in one transaction. Neither write survives without
	// the other.
	PromoteObservation(ctx context.Context, obs model.PriceObservation, sample model.ErrorSample) error
	// InsertPredicted stores a forecast row unless the key already
	// exists; reports whether a row was written.
	InsertPredicted(ctx context.Context, obs model.PriceObservation) (bool, error)

	// Error-sample log, append-only.
	QueryErrorWindow(ctx context.Context, region, crop, from, to string) ([]model.ErrorSample, error)

	// Actual-price history, ascending by date.
	RecentActualPrices(ctx context.Context, region, crop string, n int) ([]model.PricePoint, error)
	ActualPriceHistory(ctx context.Context, region, crop string) ([]model.PricePoint, error)

	// Weather reports, keyed (date, region).
	UpsertWeather(ctx context.Context, obs model.WeatherObservation) error
	GetWeather(ctx context.Context, date, region string) (*model.WeatherObservation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
