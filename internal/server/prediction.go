package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/forecast"
)

type predictionPayload struct {
	Crop   string `json:"crop"`
	Region string `json:"region"`
}

// handlePredict runs the forecast for a (region, crop) and stores the
// resulting predicted rows. Existing ledger rows are never clobbered.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var payload predictionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload structure")
		return
	}

	crop := strings.TrimSpace(payload.Crop)
	region := strings.TrimSpace(payload.Region)
	if crop == "" || region == "" {
		writeError(w, http.StatusBadRequest, "crop and region are required")
		return
	}

	predictions, err := s.forecaster.PredictPrices(r.Context(), region, crop)
	if err != nil {
		switch {
		case eris.Is(err, forecast.ErrUnknownCrop):
			writeError(w, http.StatusBadRequest, "crop '"+crop+"' not recognized as a known fruit or vegetable")
		case eris.Is(err, forecast.ErrInsufficientHistory):
			writeError(w, http.StatusBadRequest, "not enough historical price data for "+crop+" in "+region)
		case eris.Is(err, forecast.ErrArtifactNotFound):
			writeError(w, http.StatusNotFound, "no trained model found for "+region)
		default:
			zap.L().Error("predict prices", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "error while generating predictions")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"crop":        crop,
		"region":      region,
		"predictions": predictions,
	})
}
