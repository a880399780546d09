// Package server exposes the price, weather and prediction API over
// HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/forecast"
	"github.com/agroprophet/agroprophet/internal/reconcile"
	"github.com/agroprophet/agroprophet/internal/store"
)

// Server wires the reconciliation engine, drift detector and
// forecaster behind the HTTP API.
type Server struct {
	store      store.Store
	engine     *reconcile.Engine
	detector   *reconcile.Detector
	forecaster *forecast.Forecaster
	staticDir  string
}

// New creates a Server.
func New(st store.Store, engine *reconcile.Engine, detector *reconcile.Detector, forecaster *forecast.Forecaster, staticDir string) *Server {
	return &Server{
		store:      st,
		engine:     engine,
		detector:   detector,
		forecaster: forecaster,
		staticDir:  staticDir,
	}
}

// Router builds the chi router with CORS for the given origins.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	if s.staticDir != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/data", func(r chi.Router) {
			r.Post("/prices", s.handleStorePrice)
			r.Get("/prices/recent", s.handleRecentPrices)
			r.Post("/weather", s.handleStoreWeather)
		})
		r.Post("/predict", s.handlePredict)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.Error(w, "index.html not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, index)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
