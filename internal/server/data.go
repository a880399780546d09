package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/reconcile"
)

type priceData struct {
	Price float64 `json:"price"`
}

type pricePayload struct {
	Date      string    `json:"date"`
	Region    string    `json:"region"`
	Crop      string    `json:"crop"`
	PriceData priceData `json:"priceData"`
}

type weatherData struct {
	Rainfall *float64 `json:"rainfall"`
	Humidity *float64 `json:"humidity"`
	Temp     *float64 `json:"temp"`
}

type weatherPayload struct {
	Date        string      `json:"date"`
	Region      string      `json:"region"`
	WeatherData weatherData `json:"weatherData"`
}

// handleStorePrice reconciles an incoming actual price against the
// ledger, then runs drift evaluation. Drift evaluation is advisory:
// its failure never fails the write that triggered it.
func (s *Server) handleStorePrice(w http.ResponseWriter, r *http.Request) {
	var payload pricePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload structure")
		return
	}

	outcome, err := s.engine.ReconcileActual(r.Context(), payload.Date, payload.Region, payload.Crop, payload.PriceData.Price)
	if err != nil {
		if eris.Is(err, reconcile.ErrInvalidKey) {
			writeError(w, http.StatusBadRequest, eris.Cause(err).Error())
			return
		}
		zap.L().Error("store price", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error while storing price")
		return
	}

	if outcome.Kind == reconcile.OutcomePromoted {
		if _, err := s.detector.Evaluate(r.Context(), payload.Region, payload.Crop, payload.Date); err != nil {
			zap.L().Error("drift evaluation", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Price data saved successfully."})
}

// handleStoreWeather upserts a weather record keyed by (date, region).
func (s *Server) handleStoreWeather(w http.ResponseWriter, r *http.Request) {
	var payload weatherPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload structure")
		return
	}
	if strings.TrimSpace(payload.Date) == "" || strings.TrimSpace(payload.Region) == "" {
		writeError(w, http.StatusBadRequest, "date and region are required")
		return
	}

	obs := model.WeatherObservation{
		Date:     payload.Date,
		Region:   payload.Region,
		Rainfall: payload.WeatherData.Rainfall,
		Humidity: payload.WeatherData.Humidity,
		Temp:     payload.WeatherData.Temp,
	}
	if err := s.store.UpsertWeather(r.Context(), obs); err != nil {
		zap.L().Error("store weather", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error while storing weather")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Weather data saved successfully."})
}

// handleRecentPrices returns the last n actual prices for a
// (region, crop), oldest first.
func (s *Server) handleRecentPrices(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	crop := r.URL.Query().Get("crop")
	if strings.TrimSpace(region) == "" || strings.TrimSpace(crop) == "" {
		writeError(w, http.StatusBadRequest, "region and crop are required")
		return
	}

	n := 4
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	prices, err := s.store.RecentActualPrices(r.Context(), region, crop, n)
	if err != nil {
		zap.L().Error("recent prices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error while reading prices")
		return
	}
	if prices == nil {
		prices = []model.PricePoint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"region": region,
		"crop":   crop,
		"prices": prices,
	})
}
