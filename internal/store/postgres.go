package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS price (
	date   TEXT NOT NULL,
	region TEXT NOT NULL,
	crop   TEXT NOT NULL,
	price  DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL DEFAULT 'predicted',
	PRIMARY KEY (date, region, crop)
);

CREATE TABLE IF NOT EXISTS prediction_errors (
	id            TEXT PRIMARY KEY,
	date          TEXT NOT NULL,
	region        TEXT NOT NULL,
	crop          TEXT NOT NULL,
	squared_error DOUBLE PRECISION NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weather (
	date     TEXT NOT NULL,
	region   TEXT NOT NULL,
	rainfall DOUBLE PRECISION,
	humidity DOUBLE PRECISION,
	temp     DOUBLE PRECISION,
	PRIMARY KEY (date, region)
);

CREATE INDEX IF NOT EXISTS idx_price_region_crop_date ON price(region, crop, date);
CREATE INDEX IF NOT EXISTS idx_errors_region_crop_date ON prediction_errors(region, crop, date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetObservation(ctx context.Context, date, region, crop string) (*model.PriceObservation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT date, region, crop, price, status FROM price WHERE date = $1 AND region = $2 AND crop = $3`,
		date, region, crop,
	)

	var obs model.PriceObservation
	var status string
	err := row.Scan(&obs.Date, &obs.Region, &obs.Crop, &obs.Price, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get observation")
	}
	obs.Status = model.PriceStatus(status)
	return &obs, nil
}

func (s *PostgresStore) InsertActual(ctx context.Context, obs model.PriceObservation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price (date, region, crop, price, status) VALUES ($1, $2, $3, $4, $5)`,
		obs.Date, obs.Region, obs.Crop, obs.Price, string(model.StatusActual),
	)
	return eris.Wrapf(err, "postgres: insert actual %s", obs.Key())
}

func (s *PostgresStore) OverwriteActual(ctx context.Context, obs model.PriceObservation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE price SET price = $1 WHERE date = $2 AND region = $3 AND crop = $4 AND status = $5`,
		obs.Price, obs.Date, obs.Region, obs.Crop, string(model.StatusActual),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: overwrite actual %s", obs.Key())
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: price row not found: %s", obs.Key())
	}
	return nil
}

func (s *PostgresStore) PromoteObservation(ctx context.Context, obs model.PriceObservation, sample model.ErrorSample) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin promote")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE price SET price = $1, status = $2 WHERE date = $3 AND region = $4 AND crop = $5 AND status = $6`,
		obs.Price, string(model.StatusActual),
		obs.Date, obs.Region, obs.Crop, string(model.StatusPredicted),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: promote %s", obs.Key())
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotPredicted, "postgres: promote %s", obs.Key())
	}

	id := sample.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := sample.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO prediction_errors (id, date, region, crop, squared_error, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sample.Date, sample.Region, sample.Crop, sample.SquaredError, createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append error sample %s", obs.Key())
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit promote")
}

func (s *PostgresStore) InsertPredicted(ctx context.Context, obs model.PriceObservation) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO price (date, region, crop, price, status) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (date, region, crop) DO NOTHING`,
		obs.Date, obs.Region, obs.Crop, obs.Price, string(model.StatusPredicted),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert predicted %s", obs.Key())
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) QueryErrorWindow(ctx context.Context, region, crop, from, to string) ([]model.ErrorSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, date, region, crop, squared_error, created_at FROM prediction_errors
		 WHERE region = $1 AND crop = $2 AND date >= $3 AND date <= $4
		 ORDER BY date ASC`,
		region, crop, from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query error window")
	}
	defer rows.Close()

	var samples []model.ErrorSample
	for rows.Next() {
		var es model.ErrorSample
		if err := rows.Scan(&es.ID, &es.Date, &es.Region, &es.Crop, &es.SquaredError, &es.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan error sample")
		}
		samples = append(samples, es)
	}
	return samples, eris.Wrap(rows.Err(), "postgres: iterate error window")
}

func (s *PostgresStore) RecentActualPrices(ctx context.Context, region, crop string, n int) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, price FROM price
		 WHERE region = $1 AND crop = $2 AND status = $3
		 ORDER BY date DESC LIMIT $4`,
		region, crop, string(model.StatusActual), n,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent actual prices")
	}
	defer rows.Close()

	points, err := scanPgPricePoints(rows)
	if err != nil {
		return nil, err
	}
	reversePoints(points)
	return points, nil
}

func (s *PostgresStore) ActualPriceHistory(ctx context.Context, region, crop string) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, price FROM price
		 WHERE region = $1 AND crop = $2 AND status = $3
		 ORDER BY date ASC`,
		region, crop, string(model.StatusActual),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: actual price history")
	}
	defer rows.Close()
	return scanPgPricePoints(rows)
}

func (s *PostgresStore) UpsertWeather(ctx context.Context, obs model.WeatherObservation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO weather (date, region, rainfall, humidity, temp) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (date, region) DO UPDATE SET rainfall = EXCLUDED.rainfall, humidity = EXCLUDED.humidity, temp = EXCLUDED.temp`,
		obs.Date, obs.Region, obs.Rainfall, obs.Humidity, obs.Temp,
	)
	return eris.Wrapf(err, "postgres: upsert weather %s/%s", obs.Date, obs.Region)
}

func (s *PostgresStore) GetWeather(ctx context.Context, date, region string) (*model.WeatherObservation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT date, region, rainfall, humidity, temp FROM weather WHERE date = $1 AND region = $2`,
		date, region,
	)

	var obs model.WeatherObservation
	err := row.Scan(&obs.Date, &obs.Region, &obs.Rainfall, &obs.Humidity, &obs.Temp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get weather")
	}
	return &obs, nil
}

func scanPgPricePoints(rows pgx.Rows) ([]model.PricePoint, error) {
	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Date, &p.Price); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate price points")
}
