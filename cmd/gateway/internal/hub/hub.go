// Package hub tracks which WebSocket sessions watch which tickers and fans feed messages out to them.
// Upstream Redis subscriptions follow demand: a ticker is subscribed while at least one session watches it.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/repository"
)

const storeTimeout = 3 * time.Second

type Subscriber interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Hub never calls Redis while holding mu, so Broadcast is not held up by a slow SUBSCRIBE.
// Upstream changes are applied by reconcile under upstreamMu.
type Hub struct {
	store   repository.FeedStore
	logger  *zap.Logger
	tickers protocol.TickerSet

	mu       sync.RWMutex
	watchers map[string]map[Subscriber]struct{} // ticker -> sessions
	watching map[Subscriber]map[string]struct{} // session -> tickers
	pending  map[string]int                     // subscribes in flight per ticker

	upstreamMu sync.Mutex
	upstream   map[string]bool // tickers currently subscribed in Redis
}

func NewHub(store repository.FeedStore, logger *zap.Logger, tickers protocol.TickerSet) *Hub {
	return &Hub{
		store:    store,
		logger:   logger,
		tickers:  tickers,
		watchers: make(map[string]map[Subscriber]struct{}),
		watching: make(map[Subscriber]map[string]struct{}),
		pending:  make(map[string]int),
		upstream: make(map[string]bool),
	}
}

// Run pumps feed messages into Broadcast until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.store.Listen(ctx, h.Broadcast)
}

func (h *Hub) HandleCommand(s Subscriber, req protocol.WSRequest) {
	req.Normalize()

	switch req.Action {
	case protocol.ActionSubscribe:
		h.subscribe(s, req)
	case protocol.ActionUnsubscribe:
		h.unsubscribe(s, req)
	case protocol.ActionUnsubscribeAll:
		h.unsubscribeAll(s, req)
	default:
		h.sendError(s, req.ID, "Unknown action: "+req.Action, nil)
	}
}

// subscribe makes sure Redis is subscribed, loads the snapshots, and only then registers the
// session, so a live record can never reach it ahead of the older snapshot.
func (h *Hub) subscribe(s Subscriber, req protocol.WSRequest) {
	h.mu.Lock()
	var fresh []string
	seen := make(map[string]bool)
	for _, t := range req.Payload.Tickers {
		if !h.tickers.Allows(t) || seen[t] {
			continue
		}
		if _, dup := h.watching[s][t]; dup {
			continue
		}
		seen[t] = true
		fresh = append(fresh, t)
		h.pending[t]++
	}
	h.mu.Unlock()

	if len(fresh) == 0 {
		h.sendError(s, req.ID, "No valid/new tickers provided", nil)
		return
	}

	var ready, failed []string
	for _, t := range fresh {
		if err := h.reconcile(t); err != nil {
			failed = append(failed, t)
			continue
		}
		ready = append(ready, t)
	}

	snapshots := h.loadSnapshots(ready)

	h.mu.Lock()
	var added []string
	for _, t := range fresh {
		h.pending[t]--
		if h.pending[t] <= 0 {
			delete(h.pending, t)
		}
	}
	for _, t := range ready {
		if h.register(s, t) {
			added = append(added, t)
		}
	}
	if len(added) > 0 {
		s.SendJSON(protocol.WSResponse{
			Type:    protocol.TypeAck,
			ID:      req.ID,
			Status:  "success",
			Message: fmt.Sprintf("Subscribed to %v", added),
			Tickers: added,
		})
		for _, t := range added {
			if payload, ok := snapshots[t]; ok {
				if msg, err := envelope(t, payload); err == nil {
					s.SendBytes(msg)
				}
			}
		}
	}
	h.mu.Unlock()

	if len(failed) > 0 {
		h.sendError(s, req.ID, fmt.Sprintf("Failed to subscribe to %v", failed), failed)
	}
	// a concurrent leave may have dropped the upstream while we were registering
	for _, t := range fresh {
		h.reconcileLogged(t)
	}
}

func (h *Hub) unsubscribe(s Subscriber, req protocol.WSRequest) {
	h.mu.Lock()
	var removed []string
	for _, t := range req.Payload.Tickers {
		if h.unregister(s, t) {
			removed = append(removed, t)
		}
	}
	h.mu.Unlock()

	if len(removed) == 0 {
		h.sendError(s, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Tickers), nil)
		return
	}
	s.SendJSON(protocol.WSResponse{
		Type:    protocol.TypeAck,
		ID:      req.ID,
		Status:  "success",
		Message: fmt.Sprintf("Unsubscribed from %v", removed),
		Tickers: removed,
	})
	for _, t := range removed {
		h.reconcileLogged(t)
	}
}

func (h *Hub) unsubscribeAll(s Subscriber, req protocol.WSRequest) {
	removed := h.dropAll(s)
	s.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: req.ID, Status: "success", Message: "Unsubscribed from all tickers"})
	for _, t := range removed {
		h.reconcileLogged(t)
	}
}

// Unregister drops every subscription of s and closes it.
func (h *Hub) Unregister(s Subscriber) {
	removed := h.dropAll(s)
	s.Close()
	for _, t := range removed {
		h.reconcileLogged(t)
	}
}

// Broadcast wraps payload in an analytics envelope and queues it on every session watching ticker.
func (h *Hub) Broadcast(ticker, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := h.watchers[ticker]
	if len(sessions) == 0 {
		return
	}

	msg, err := envelope(ticker, payload)
	if err != nil {
		h.logger.Warn("Dropping malformed feed message", zap.String("ticker", ticker), zap.Error(err))
		return
	}
	for s := range sessions {
		s.SendBytes(msg)
	}
}

// Watchers reports how many sessions currently watch ticker.
func (h *Hub) Watchers(ticker string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[ticker])
}

// reconcile brings the Redis subscription for ticker in line with current demand.
// It returns an error only when demand exists and SUBSCRIBE failed.
func (h *Hub) reconcile(ticker string) error {
	h.upstreamMu.Lock()
	defer h.upstreamMu.Unlock()

	h.mu.RLock()
	wanted := len(h.watchers[ticker]) > 0 || h.pending[ticker] > 0
	h.mu.RUnlock()

	if wanted == h.upstream[ticker] {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if wanted {
		if err := h.store.Subscribe(ctx, ticker); err != nil {
			h.logger.Error("Failed to subscribe upstream", zap.String("ticker", ticker), zap.Error(err))
			return err
		}
		h.upstream[ticker] = true
		return nil
	}

	if err := h.store.Unsubscribe(ctx, ticker); err != nil {
		h.logger.Error("Failed to unsubscribe upstream", zap.String("ticker", ticker), zap.Error(err))
	}
	delete(h.upstream, ticker)
	return nil
}

func (h *Hub) reconcileLogged(ticker string) { _ = h.reconcile(ticker) }

func (h *Hub) loadSnapshots(tickers []string) map[string]string {
	if len(tickers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	snapshots, err := h.store.Snapshots(ctx, tickers)
	if err != nil {
		h.logger.Warn("Failed to load snapshots", zap.Strings("tickers", tickers), zap.Error(err))
		return nil
	}
	return snapshots
}

// register and unregister must be called with mu held.
func (h *Hub) register(s Subscriber, ticker string) bool {
	current := h.watching[s]
	if _, dup := current[ticker]; dup {
		return false
	}
	if current == nil {
		current = make(map[string]struct{})
		h.watching[s] = current
	}
	current[ticker] = struct{}{}

	if h.watchers[ticker] == nil {
		h.watchers[ticker] = make(map[Subscriber]struct{})
	}
	h.watchers[ticker][s] = struct{}{}
	return true
}

func (h *Hub) unregister(s Subscriber, ticker string) bool {
	current, ok := h.watching[s]
	if !ok {
		return false
	}
	if _, ok := current[ticker]; !ok {
		return false
	}
	delete(current, ticker)
	if len(current) == 0 {
		delete(h.watching, s)
	}

	delete(h.watchers[ticker], s)
	if len(h.watchers[ticker]) == 0 {
		delete(h.watchers, ticker)
	}
	return true
}

func (h *Hub) dropAll(s Subscriber) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	for t := range h.watching[s] {
		removed = append(removed, t)
	}
	for _, t := range removed {
		h.unregister(s, t)
	}
	return removed
}

func (h *Hub) sendError(s Subscriber, id, msg string, tickers []string) {
	s.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg, Tickers: tickers})
}

func envelope(ticker, payload string) ([]byte, error) {
	if !json.Valid([]byte(payload)) {
		return nil, fmt.Errorf("payload for %s is not valid JSON", ticker)
	}
	return json.Marshal(protocol.Envelope{Type: protocol.TypeAnalytics, Ticker: ticker, Data: json.RawMessage(payload)})
}
