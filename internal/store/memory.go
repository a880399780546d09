package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
)

// MemoryStore is an in-memory Store for tests and offline runs. All
// operations are guarded by a single mutex, which also gives
// PromoteObservation its atomicity.
type MemoryStore struct {
	mu      sync.Mutex
	prices  map[string]model.PriceObservation // keyed by obs.Key()
	errors  []model.ErrorSample
	weather map[string]model.WeatherObservation // "date|region"
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		prices:  make(map[string]model.PriceObservation),
		weather: make(map[string]model.WeatherObservation),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func (s *MemoryStore) GetObservation(ctx context.Context, date, region, crop string) (*model.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, ok := s.prices[date+"|"+region+"|"+crop]
	if !ok {
		return nil, nil
	}
	return &obs, nil
}

func (s *MemoryStore) InsertActual(ctx context.Context, obs model.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prices[obs.Key()]; exists {
		return eris.Errorf("memory: duplicate key %s", obs.Key())
	}
	obs.Status = model.StatusActual
	s.prices[obs.Key()] = obs
	return nil
}

func (s *MemoryStore) OverwriteActual(ctx context.Context, obs model.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.prices[obs.Key()]
	if !ok || existing.Status != model.StatusActual {
		return eris.Errorf("memory: price row not found: %s", obs.Key())
	}
	existing.Price = obs.Price
	s.prices[obs.Key()] = existing
	return nil
}

func (s *MemoryStore) PromoteObservation(ctx context.Context, obs model.PriceObservation, sample model.ErrorSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.prices[obs.Key()]
	if !ok || existing.Status != model.StatusPredicted {
		return eris.Wrapf(ErrNotPredicted, "memory: promote %s", obs.Key())
	}
	existing.Price = obs.Price
	existing.Status = model.StatusActual
	s.prices[obs.Key()] = existing

	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}
	s.errors = append(s.errors, sample)
	return nil
}

func (s *MemoryStore) InsertPredicted(ctx context.Context, obs model.PriceObservation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prices[obs.Key()]; exists {
		return false, nil
	}
	obs.Status = model.StatusPredicted
	s.prices[obs.Key()] = obs
	return true, nil
}

func (s *MemoryStore) QueryErrorWindow(ctx context.Context, region, crop, from, to string) ([]model.ErrorSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ErrorSample
	for _, es := range s.errors {
		if es.Region == region && es.Crop == crop && es.Date >= from && es.Date <= to {
			out = append(out, es)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) RecentActualPrices(ctx context.Context, region, crop string, n int) ([]model.PricePoint, error) {
	points, err := s.ActualPriceHistory(ctx, region, crop)
	if err != nil {
		return nil, err
	}
	if len(points) > n {
		points = points[len(points)-n:]
	}
	return points, nil
}

func (s *MemoryStore) ActualPriceHistory(ctx context.Context, region, crop string) ([]model.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var points []model.PricePoint
	for _, obs := range s.prices {
		if obs.Region == region && obs.Crop == crop && obs.Status == model.StatusActual {
			points = append(points, model.PricePoint{Date: obs.Date, Price: obs.Price})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

func (s *MemoryStore) UpsertWeather(ctx context.Context, obs model.WeatherObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weather[obs.Date+"|"+obs.Region] = obs
	return nil
}

func (s *MemoryStore) GetWeather(ctx context.Context, date, region string) (*model.WeatherObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, ok := s.weather[date+"|"+region]
	if !ok {
		return nil, nil
	}
	return &obs, nil
}
