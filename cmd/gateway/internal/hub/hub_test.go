package hub_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/testutils"
)

func setup() (*hub.Hub, *testutils.MockFeedStore) {
	store := testutils.NewMockStore()
	return hub.NewHub(store, zap.NewNop(), protocol.NewTickerSet([]string{"AAPL", "TSLA", "BTC"})), store
}

func subscribe(tickers ...string) protocol.WSRequest {
	return protocol.WSRequest{Action: protocol.ActionSubscribe, Payload: protocol.RequestPayload{Tickers: tickers}}
}

func TestHub_Subscribe_Success(t *testing.T) {
	h, store := setup()
	s := testutils.NewMockSubscriber("c1")

	req := subscribe("AAPL")
	req.ID = "req-1"
	h.HandleCommand(s, req)

	last := s.Last()
	if last.Type != protocol.TypeAck || last.ID != "req-1" {
		t.Errorf("Expected ack for req-1, got %+v", last)
	}
	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Expected upstream subscription to AAPL")
	}
}

func TestHub_Subscribe_NormalizesAndFilters(t *testing.T) {
	h, _ := setup()
	s := testutils.NewMockSubscriber("c1")

	h.HandleCommand(s, subscribe(" aapl ", "DOGE"))

	last := s.Last()
	if last.Status != "success" {
		t.Fatalf("Expected success for partially valid subscription, got %+v", last)
	}
	if len(last.Tickers) != 1 || last.Tickers[0] != "AAPL" {
		t.Errorf("Expected only AAPL accepted, got %v", last.Tickers)
	}
	if strings.Contains(last.Message, "DOGE") {
		t.Errorf("Response should not mention rejected ticker")
	}
}

func TestHub_Subscribe_NothingValid(t *testing.T) {
	h, store := setup()
	s := testutils.NewMockSubscriber("c1")

	h.HandleCommand(s, subscribe("DOGE"))

	if s.Last().Type != protocol.TypeError {
		t.Errorf("Expected error, got %+v", s.Last())
	}
	if len(store.Subscribed) != 0 {
		t.Errorf("No upstream subscription expected")
	}
}

func TestHub_SharedUpstreamSubscription(t *testing.T) {
	h, store := setup()
	a := testutils.NewMockSubscriber("a")
	b := testutils.NewMockSubscriber("b")

	h.HandleCommand(a, subscribe("AAPL"))
	h.HandleCommand(a, subscribe("AAPL"))
	h.HandleCommand(b, subscribe("AAPL"))

	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Upstream should be subscribed once, got %d", store.Subscriptions("AAPL"))
	}
	if h.Watchers("AAPL") != 2 {
		t.Errorf("Expected 2 watchers, got %d", h.Watchers("AAPL"))
	}

	h.Unregister(a)
	if store.Subscriptions("AAPL") != 1 {
		t.Errorf("Upstream must stay while b watches")
	}
	h.Unregister(b)
	if store.Subscriptions("AAPL") != 0 {
		t.Errorf("Upstream should be released after the last watcher leaves")
	}
	if !a.Closed || !b.Closed {
		t.Errorf("Unregister should close sessions")
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h, store := setup()
	s := testutils.NewMockSubscriber("c1")

	h.HandleCommand(s, subscribe("AAPL", "TSLA"))
	h.HandleCommand(s, protocol.WSRequest{Action: protocol.ActionUnsubscribe, Payload: protocol.RequestPayload{Tickers: []string{"aapl"}}})

	if store.Subscriptions("AAPL") != 0 {
		t.Errorf("Upstream should be unsubscribed from AAPL")
	}
	if store.Subscriptions("TSLA") != 1 {
		t.Errorf("Upstream should still be subscribed to TSLA")
	}

	h.HandleCommand(s, protocol.WSRequest{Action: protocol.ActionUnsubscribe, Payload: protocol.RequestPayload{Tickers: []string{"BTC"}}})
	if s.Last().Type != protocol.TypeError {
		t.Errorf("Expected error for ticker not watched")
	}
}

func TestHub_UnsubscribeAll(t *testing.T) {
	h, store := setup()
	s := testutils.NewMockSubscriber("c1")

	h.HandleCommand(s, subscribe("AAPL", "TSLA"))
	h.HandleCommand(s, protocol.WSRequest{Action: protocol.ActionUnsubscribeAll})

	if len(store.Subscribed) != 0 {
		t.Errorf("Store should be empty after unsubscribe_all, got %v", store.Subscribed)
	}
	if s.Last().Type != protocol.TypeAck {
		t.Errorf("Expected ack")
	}
}

func TestHub_UnknownAction(t *testing.T) {
	h, _ := setup()
	s := testutils.NewMockSubscriber("c1")

	h.HandleCommand(s, protocol.WSRequest{Action: "dance"})

	if s.Last().Type != protocol.TypeError {
		t.Errorf("Expected error for unknown action")
	}
}

func TestHub_Broadcast(t *testing.T) {
	h, _ := setup()
	watcher := testutils.NewMockSubscriber("w")
	other := testutils.NewMockSubscriber("o")

	h.HandleCommand(watcher, subscribe("BTC"))
	h.HandleCommand(other, subscribe("TSLA"))

	h.Broadcast("BTC", `{"ticker":"BTC","price":42000}`)
	h.Broadcast("BTC", `not-json`)

	raw := watcher.Raw()
	if len(raw) != 1 {
		t.Fatalf("Expected exactly one valid message, got %d", len(raw))
	}

	var env protocol.Envelope
	if err := json.Unmarshal([]byte(raw[0]), &env); err != nil {
		t.Fatalf("Envelope is not JSON: %v", err)
	}
	if env.Type != protocol.TypeAnalytics || env.Ticker != "BTC" || !strings.Contains(string(env.Data), "42000") {
		t.Errorf("Unexpected envelope: %+v", env)
	}
	if len(other.Raw()) != 0 {
		t.Errorf("TSLA watcher should not receive BTC")
	}
}

func TestHub_SnapshotOnSubscribe(t *testing.T) {
	h, store := setup()
	store.SnapshotData["AAPL"] = `{"ticker":"AAPL","price":185}`
	s := testutils.NewMockSubscriber("c1")

	h.HandleCommand(s, subscribe("AAPL", "TSLA"))

	deadline := time.Now().Add(time.Second)
	for len(s.Raw()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	raw := s.Raw()
	if len(raw) != 1 || !strings.Contains(raw[0], `"price":185`) {
		t.Errorf("Expected AAPL snapshot only, got %v", raw)
	}
}

func TestHub_ConcurrentCommands(t *testing.T) {
	h, _ := setup()
	s := testutils.NewMockSubscriber("c1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); h.HandleCommand(s, subscribe("AAPL")) }()
		go func() { defer wg.Done(); h.Broadcast("AAPL", `{"price":1}`) }()
		go func() {
			defer wg.Done()
			h.HandleCommand(s, protocol.WSRequest{Action: protocol.ActionUnsubscribe, Payload: protocol.RequestPayload{Tickers: []string{"AAPL"}}})
		}()
	}
	wg.Wait()
	h.Unregister(s)

	if h.Watchers("AAPL") != 0 {
		t.Errorf("Expected no watchers after unregister")
	}
}

func TestHub_FailedUpstreamSubscribeIsRetried(t *testing.T) {
	h, store := setup()
	store.FailSubscribe = 1
	a := testutils.NewMockSubscriber("a")
	b := testutils.NewMockSubscriber("b")

	h.HandleCommand(a, subscribe("AAPL"))

	if last := a.Last(); last.Type != protocol.TypeError || len(last.Tickers) != 1 || last.Tickers[0] != "AAPL" {
		t.Fatalf("Expected error naming AAPL, got %+v", last)
	}
	if h.Watchers("AAPL") != 0 {
		t.Fatalf("Failed subscribe must not register a watcher")
	}

	h.HandleCommand(b, subscribe("AAPL"))

	if b.Last().Type != protocol.TypeAck {
		t.Errorf("Expected ack for b, got %+v", b.Last())
	}
	if store.Calls() != 2 {
		t.Errorf("Expected upstream subscribe to be retried, got %d calls", store.Calls())
	}
	if store.Subscriptions("AAPL") != 1 || h.Watchers("AAPL") != 1 {
		t.Errorf("Expected one live upstream and one watcher, got %d/%d", store.Subscriptions("AAPL"), h.Watchers("AAPL"))
	}

	h.Broadcast("AAPL", `{"price":1}`)
	if len(b.Raw()) != 1 {
		t.Errorf("b should receive live records after the retry")
	}
}

func TestHub_SnapshotNeverFollowsLiveRecord(t *testing.T) {
	h, store := setup()
	store.SnapshotData["AAPL"] = `{"price":1}`
	store.SnapshotEntered = make(chan struct{}, 1)
	store.SnapshotGate = make(chan struct{})
	s := testutils.NewMockSubscriber("c1")

	done := make(chan struct{})
	go func() {
		h.HandleCommand(s, subscribe("AAPL"))
		close(done)
	}()

	<-store.SnapshotEntered
	h.Broadcast("AAPL", `{"price":2}`)
	close(store.SnapshotGate)
	<-done

	h.Broadcast("AAPL", `{"price":3}`)

	raw := s.Raw()
	if len(raw) != 2 {
		t.Fatalf("Expected snapshot and one live record, got %v", raw)
	}
	if !strings.Contains(raw[0], `"price":1`) || !strings.Contains(raw[1], `"price":3`) {
		t.Errorf("Expected snapshot before live record, got %v", raw)
	}
}

func TestHub_BroadcastNotBlockedByUpstreamSubscribe(t *testing.T) {
	h, store := setup()
	watcher := testutils.NewMockSubscriber("w")
	h.HandleCommand(watcher, subscribe("BTC"))

	store.SubscribeEntered = make(chan struct{}, 1)
	store.SubscribeGate = make(chan struct{})
	defer close(store.SubscribeGate)

	go h.HandleCommand(testutils.NewMockSubscriber("slow"), subscribe("AAPL"))
	<-store.SubscribeEntered

	delivered := make(chan struct{})
	go func() {
		h.Broadcast("BTC", `{"price":42000}`)
		close(delivered)
	}()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked while an upstream subscribe was in flight")
	}
	if len(watcher.Raw()) != 1 {
		t.Errorf("Expected BTC record to be delivered")
	}
}
