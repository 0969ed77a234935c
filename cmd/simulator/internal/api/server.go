// Package api exposes the simulator's read-only HTTP surface: health, the loaded catalog,
// the latest observation per ticker and Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/pkg/models"
)

// PriceReader is the scheduler's read side
type PriceReader interface {
	Latest(ticker string) (models.PricePoint, bool)
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type Server struct {
	logger  *zap.Logger
	prices  PriceReader
	symbols []models.Symbol
}

func NewServer(logger *zap.Logger, prices PriceReader, symbols []models.Symbol) *Server {
	if symbols == nil {
		symbols = []models.Symbol{}
	}
	return &Server{logger: logger, prices: prices, symbols: symbols}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/prices/{ticker}", s.handleLatestPrice)
	mux.HandleFunc("POST /api/simulate/start", s.handleStart)
	mux.HandleFunc("POST /api/simulate/stop", s.handleStop)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.symbols)
}

// handleLatestPrice answers JSON null for tickers without observations.
func (s *Server) handleLatestPrice(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))

	point, ok := s.prices.Latest(ticker)
	if !ok {
		s.writeJSON(w, http.StatusOK, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, point)
}

// The simulation runs for the whole process lifetime; start and stop are acknowledged only.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Simulation is always running")
	s.writeJSON(w, http.StatusOK, "Simulation is running")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Stop simulation requested (no-op)")
	s.writeJSON(w, http.StatusOK, "Simulation cannot be stopped in this mode")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("JSON Encode Error", zap.Error(err))
	}
}
