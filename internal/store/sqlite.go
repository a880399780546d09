package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/agroprophet/agroprophet/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS price (
	date   TEXT NOT NULL,
	region TEXT NOT NULL,
	crop   TEXT NOT NULL,
	price  REAL NOT NULL,
	status TEXT NOT NULL DEFAULT 'predicted',
	PRIMARY KEY (date, region, crop)
);

CREATE TABLE IF NOT EXISTS prediction_errors (
	id            TEXT PRIMARY KEY,
	date          TEXT NOT NULL,
	region        TEXT NOT NULL,
	crop          TEXT NOT NULL,
	squared_error REAL NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS weather (
	date     TEXT NOT NULL,
	region   TEXT NOT NULL,
	rainfall REAL,
	humidity REAL,
	temp     REAL,
	PRIMARY KEY (date, region)
);

CREATE INDEX IF NOT EXISTS idx_price_region_crop_date ON price(region, crop, date);
CREATE INDEX IF NOT EXISTS idx_errors_region_crop_date ON prediction_errors(region, crop, date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetObservation(ctx context.Context, date, region, crop string) (*model.PriceObservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, region, crop, price, status FROM price WHERE date = ? AND region = ? AND crop = ?`,
		date, region, crop,
	)

	var obs model.PriceObservation
	var status string
	err := row.Scan(&obs.Date, &obs.Region, &obs.Crop, &obs.Price, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get observation")
	}
	obs.Status = model.PriceStatus(status)
	return &obs, nil
}

func (s *SQLiteStore) InsertActual(ctx context.Context, obs model.PriceObservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price (date, region, crop, price, status) VALUES (?, ?, ?, ?, ?)`,
		obs.Date, obs.Region, obs.Crop, obs.Price, string(model.StatusActual),
	)
	return eris.Wrapf(err, "sqlite: insert actual %s", obs.Key())
}

func (s *SQLiteStore) OverwriteActual(ctx context.Context, obs model.PriceObservation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE price SET price = ? WHERE date = ? AND region = ? AND crop = ? AND status = ?`,
		obs.Price, obs.Date, obs.Region, obs.Crop, string(model.StatusActual),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: overwrite actual %s", obs.Key())
	}
	return checkRowsAffected(res, "price row", obs.Key())
}

func (s *SQLiteStore) PromoteObservation(ctx context.Context, obs model.PriceObservation, sample model.ErrorSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin promote")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE price SET price = ?, status = ? WHERE date = ? AND region = ? AND crop = ? AND status = ?`,
		obs.Price, string(model.StatusActual),
		obs.Date, obs.Region, obs.Crop, string(model.StatusPredicted),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: promote %s", obs.Key())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: promote rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotPredicted, "sqlite: promote %s", obs.Key())
	}

	id := sample.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := sample.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO prediction_errors (id, date, region, crop, squared_error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sample.Date, sample.Region, sample.Crop, sample.SquaredError, createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append error sample %s", obs.Key())
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit promote")
}

func (s *SQLiteStore) InsertPredicted(ctx context.Context, obs model.PriceObservation) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO price (date, region, crop, price, status) VALUES (?, ?, ?, ?, ?)`,
		obs.Date, obs.Region, obs.Crop, obs.Price, string(model.StatusPredicted),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert predicted %s", obs.Key())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert predicted rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) QueryErrorWindow(ctx context.Context, region, crop, from, to string) ([]model.ErrorSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, region, crop, squared_error, created_at FROM prediction_errors
		 WHERE region = ? AND crop = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		region, crop, from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query error window")
	}
	defer rows.Close()

	var samples []model.ErrorSample
	for rows.Next() {
		var es model.ErrorSample
		if err := rows.Scan(&es.ID, &es.Date, &es.Region, &es.Crop, &es.SquaredError, &es.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan error sample")
		}
		samples = append(samples, es)
	}
	return samples, eris.Wrap(rows.Err(), "sqlite: iterate error window")
}

func (s *SQLiteStore) RecentActualPrices(ctx context.Context, region, crop string, n int) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, price FROM price
		 WHERE region = ? AND crop = ? AND status = ?
		 ORDER BY date DESC LIMIT ?`,
		region, crop, string(model.StatusActual), n,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent actual prices")
	}
	defer rows.Close()

	points, err := scanPricePoints(rows)
	if err != nil {
		return nil, err
	}
	reversePoints(points) // query is newest-first; callers get ascending
	return points, nil
}

func (s *SQLiteStore) ActualPriceHistory(ctx context.Context, region, crop string) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, price FROM price
		 WHERE region = ? AND crop = ? AND status = ?
		 ORDER BY date ASC`,
		region, crop, string(model.StatusActual),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: actual price history")
	}
	defer rows.Close()
	return scanPricePoints(rows)
}

func (s *SQLiteStore) UpsertWeather(ctx context.Context, obs model.WeatherObservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather (date, region, rainfall, humidity, temp) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date, region) DO UPDATE SET rainfall = excluded.rainfall, humidity = excluded.humidity, temp = excluded.temp`,
		obs.Date, obs.Region, obs.Rainfall, obs.Humidity, obs.Temp,
	)
	return eris.Wrapf(err, "sqlite: upsert weather %s/%s", obs.Date, obs.Region)
}

func (s *SQLiteStore) GetWeather(ctx context.Context, date, region string) (*model.WeatherObservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, region, rainfall, humidity, temp FROM weather WHERE date = ? AND region = ?`,
		date, region,
	)

	var obs model.WeatherObservation
	err := row.Scan(&obs.Date, &obs.Region, &obs.Rainfall, &obs.Humidity, &obs.Temp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get weather")
	}
	return &obs, nil
}

// helpers

func scanPricePoints(rows *sql.Rows) ([]model.PricePoint, error) {
	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Date, &p.Price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate price points")
}

func reversePoints(points []model.PricePoint) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
