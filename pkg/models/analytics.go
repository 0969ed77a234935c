package models

import "time"

// PricePoint is a single simulated observation for one ticker
type PricePoint struct {
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalyticsRecord is the unit streamed to telemetry sinks, one per ticker per tick.
// Optional analytics are omitted from the JSON when there is not enough history.
type AnalyticsRecord struct {
	Ticker          string    `json:"ticker"`
	Price           float64   `json:"price"`
	Volume          float64   `json:"volume"`
	MovingAverage5  *float64  `json:"moving_average_5,omitempty"`
	MovingAverage20 *float64  `json:"moving_average_20,omitempty"`
	PercentChange   *float64  `json:"percent_change,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	IsAnomaly       bool      `json:"is_anomaly"`
	AnomalyType     string    `json:"anomaly_type,omitempty"`
	AnomalyMessage  string    `json:"anomaly_message,omitempty"`
}

// Symbol is an entry of the instrument catalog
type Symbol struct {
	ID         int64  `json:"id"`
	Ticker     string `json:"ticker"`
	Name       string `json:"name"`
	SymbolType string `json:"symbol_type"` // "CRYPTO", "STOCK", ...
}
