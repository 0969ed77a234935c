// Package ingest accepts analytics records over HTTP and republishes them on the Redis feed.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

const maxBodyBytes = 64 * 1024

type Publisher interface {
	Publish(ctx context.Context, ticker string, payload []byte) error
}

type Handler struct {
	logger  *zap.Logger
	feed    Publisher
	tickers protocol.TickerSet
}

func NewHandler(logger *zap.Logger, feed Publisher, tickers protocol.TickerSet) *Handler {
	return &Handler{logger: logger, feed: feed, tickers: tickers}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analytics/price", h.handlePrice)
	mux.HandleFunc("GET /health", h.handleHealth)
}

type response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	var rec models.AnalyticsRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, response{Status: "rejected", Error: "body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, response{Status: "rejected", Error: "invalid JSON"})
		return
	}

	rec.Ticker = protocol.NormalizeTicker(rec.Ticker)
	if err := validate(rec); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "rejected", Error: err.Error()})
		return
	}
	if !h.tickers.Allows(rec.Ticker) {
		writeJSON(w, http.StatusUnprocessableEntity, response{Status: "rejected", Error: "unknown ticker " + rec.Ticker})
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Error: "encode failed"})
		return
	}

	if err := h.feed.Publish(r.Context(), rec.Ticker, payload); err != nil {
		h.logger.Error("Failed to publish record", zap.String("ticker", rec.Ticker), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, response{Status: "error", Error: "feed unavailable"})
		return
	}

	if rec.IsAnomaly {
		h.logger.Info("Anomaly received", zap.String("ticker", rec.Ticker), zap.String("type", rec.AnomalyType))
	}
	writeJSON(w, http.StatusAccepted, response{Status: "accepted"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "timestamp": time.Now().UTC()})
}

func validate(rec models.AnalyticsRecord) error {
	switch {
	case rec.Ticker == "":
		return errors.New("ticker is required")
	case rec.Price <= 0 || math.IsNaN(rec.Price) || math.IsInf(rec.Price, 0):
		return errors.New("price must be a positive number")
	case rec.Volume < 0:
		return errors.New("volume must not be negative")
	case rec.Timestamp.IsZero():
		return errors.New("timestamp is required")
	case rec.IsAnomaly != (rec.AnomalyType != ""):
		return errors.New("is_anomaly and anomaly_type disagree")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
