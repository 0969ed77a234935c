package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
)

// MockSubscriber stands in for a connected WebSocket session
type MockSubscriber struct {
	IDVal    string
	Messages []protocol.WSResponse
	RawBytes []string
	Closed   bool
	Mu       sync.Mutex
}

func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{IDVal: id}
}

func (m *MockSubscriber) ID() string { return m.IDVal }

func (m *MockSubscriber) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockSubscriber) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockSubscriber) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockSubscriber) Last() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

func (m *MockSubscriber) Raw() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

// MockFeedStore keeps upstream subscriptions and snapshots in memory
type MockFeedStore struct {
	Subscribed     map[string]int // ticker -> live upstream subscriptions
	SubscribeCalls int
	FailSubscribe  int // number of upcoming Subscribe calls that fail
	SnapshotData   map[string]string
	Published      map[string][]string
	Mu             sync.Mutex

	// When set, Subscribe/Snapshots signal Entered and then block until Gate is closed.
	SubscribeEntered chan struct{}
	SubscribeGate    chan struct{}
	SnapshotEntered  chan struct{}
	SnapshotGate     chan struct{}
}

func wait(entered, gate chan struct{}) {
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
}

func NewMockStore() *MockFeedStore {
	return &MockFeedStore{
		Subscribed:   make(map[string]int),
		SnapshotData: make(map[string]string),
		Published:    make(map[string][]string),
	}
}

func (m *MockFeedStore) Snapshots(ctx context.Context, tickers []string) (map[string]string, error) {
	wait(m.SnapshotEntered, m.SnapshotGate)
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make(map[string]string)
	for _, t := range tickers {
		if p, ok := m.SnapshotData[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

func (m *MockFeedStore) Subscribe(ctx context.Context, ticker string) error {
	wait(m.SubscribeEntered, m.SubscribeGate)
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribeCalls++
	if m.FailSubscribe > 0 {
		m.FailSubscribe--
		return errors.New("mock subscribe failure")
	}
	m.Subscribed[ticker]++
	return nil
}

func (m *MockFeedStore) Unsubscribe(ctx context.Context, ticker string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Subscribed[ticker]--
	if m.Subscribed[ticker] <= 0 {
		delete(m.Subscribed, ticker)
	}
	return nil
}

func (m *MockFeedStore) Listen(ctx context.Context, onMessage func(ticker, payload string)) {
	<-ctx.Done()
}

func (m *MockFeedStore) Publish(ctx context.Context, ticker string, payload []byte) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Published[ticker] = append(m.Published[ticker], string(payload))
	return nil
}

func (m *MockFeedStore) Close() error { return nil }

func (m *MockFeedStore) Subscriptions(ticker string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Subscribed[ticker]
}

func (m *MockFeedStore) Calls() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.SubscribeCalls
}
