package protocol

import (
	"encoding/json"
	"strings"
)

const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
)

const (
	TypeAck       = "ack"
	TypeError     = "error"
	TypeAnalytics = "analytics"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Tickers []string `json:"tickers"`
}

// Normalize upper-cases and trims the requested tickers in place.
func (r *WSRequest) Normalize() {
	for i, t := range r.Payload.Tickers {
		r.Payload.Tickers[i] = NormalizeTicker(t)
	}
}

type WSResponse struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"` // echoes the request ID
	Status  string   `json:"status,omitempty"`
	Message string   `json:"message,omitempty"`
	Tickers []string `json:"tickers,omitempty"`
}

// Envelope wraps an analytics record pushed to subscribers. Data is the record exactly as ingested.
type Envelope struct {
	Type   string          `json:"type"`
	Ticker string          `json:"ticker"`
	Data   json.RawMessage `json:"data"`
}

func NormalizeTicker(t string) string { return strings.ToUpper(strings.TrimSpace(t)) }

// TickerSet is the set of tickers the gateway accepts. An empty set accepts any non-empty ticker.
type TickerSet map[string]bool

func NewTickerSet(tickers []string) TickerSet {
	set := make(TickerSet, len(tickers))
	for _, t := range tickers {
		if t = NormalizeTicker(t); t != "" {
			set[t] = true
		}
	}
	return set
}

func (s TickerSet) Allows(ticker string) bool {
	if ticker == "" {
		return false
	}
	return len(s) == 0 || s[ticker]
}
