package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/ingest"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/session"
)

func startServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repository.NewRedisStore(rdb)
	t.Cleanup(func() { store.Close() })

	tickers := protocol.NewTickerSet([]string{"AAPL", "MSFT"})
	wsHub := hub.NewHub(store, zap.NewNop(), tickers)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go wsHub.Run(ctx)

	mux := http.NewServeMux()
	ingest.NewHandler(zap.NewNop(), store, tickers).Register(mux)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		session.New(conn, wsHub, zap.NewNop(), session.DefaultOptions()).Start()
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, mr
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	t.Cleanup(func() { wsConn.Close() })
	return wsConn
}

func readJSON(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		t.Fatalf("invalid message %s: %v", msg, err)
	}
}

func TestEndToEnd_IngestToSubscriber(t *testing.T) {
	server, mr := startServer(t)
	wsConn := connectWS(t, server.URL)

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","payload":{"tickers":["aapl"]},"id":"t1"}`))

	var ack protocol.WSResponse
	readJSON(t, wsConn, &ack)
	if ack.Type != protocol.TypeAck || ack.ID != "t1" {
		t.Fatalf("Expected subscription ack, got %+v", ack)
	}

	// The upstream SUBSCRIBE is issued while handling the command; wait for Redis to see it
	deadline := time.Now().Add(2 * time.Second)
	for len(mr.PubSubChannels("analytics.*")) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	body := `{"ticker":"AAPL","price":186.25,"volume":90000,"timestamp":"2026-03-01T12:00:05Z",` +
		`"is_anomaly":true,"anomaly_type":"SPIKE_UP","anomaly_message":"Price spiked up 5.50% in one interval"}`
	resp, err := http.Post(server.URL+"/api/analytics/price", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var env protocol.Envelope
	readJSON(t, wsConn, &env)
	if env.Type != protocol.TypeAnalytics || env.Ticker != "AAPL" {
		t.Fatalf("Unexpected envelope: %+v", env)
	}
	if !strings.Contains(string(env.Data), "186.25") || !strings.Contains(string(env.Data), "SPIKE_UP") {
		t.Errorf("Record not forwarded intact: %s", env.Data)
	}

	if !mr.Exists("analytics:AAPL") {
		t.Error("Ingested record should be stored as the AAPL snapshot")
	}
}

func TestEndToEnd_SnapshotOnSubscribe(t *testing.T) {
	server, mr := startServer(t)
	mr.Set("analytics:MSFT", `{"ticker":"MSFT","price":375.5}`)

	wsConn := connectWS(t, server.URL)
	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","payload":{"tickers":["MSFT"]}}`))

	var ack protocol.WSResponse
	readJSON(t, wsConn, &ack)

	var env protocol.Envelope
	readJSON(t, wsConn, &env)
	if env.Ticker != "MSFT" || !strings.Contains(string(env.Data), "375.5") {
		t.Errorf("Expected MSFT snapshot, got %+v", env)
	}

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"unsubscribe","payload":{"tickers":["MSFT"]}}`))
	var unsub protocol.WSResponse
	readJSON(t, wsConn, &unsub)
	if !strings.Contains(unsub.Message, "Unsubscribed") {
		t.Errorf("Expected unsubscribe ack, got %+v", unsub)
	}
}

func TestEndToEnd_InvalidJSON(t *testing.T) {
	server, _ := startServer(t)
	wsConn := connectWS(t, server.URL)

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{ "action": "subsc`))

	var resp protocol.WSResponse
	readJSON(t, wsConn, &resp)
	if resp.Type != protocol.TypeError || resp.Message != "Invalid JSON" {
		t.Errorf("Expected Invalid JSON error, got %+v", resp)
	}
}

func TestEndToEnd_MaxMessageSize(t *testing.T) {
	server, _ := startServer(t)
	wsConn := connectWS(t, server.URL)

	huge := fmt.Sprintf(`{"action":"subscribe","payload":{"tickers":["%s"]}}`, strings.Repeat("a", session.MaxMessageSize+1))

	if err := wsConn.WriteMessage(websocket.TextMessage, []byte(huge)); err == nil {
		wsConn.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := wsConn.ReadMessage(); err == nil {
			t.Error("Server should have closed the connection for an oversized frame")
		}
	}
}
