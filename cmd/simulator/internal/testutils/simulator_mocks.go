package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/pricegen"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/sink"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

// MockRand replays scripted values, falling back to ValInt/ValFloat once a script runs out.
type MockRand struct {
	Ints     []int
	Floats   []float64
	ValInt   int
	ValFloat float64
	Mu       sync.Mutex
}

func (m *MockRand) Intn(n int) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Ints) > 0 {
		v := m.Ints[0]
		m.Ints = m.Ints[1:]
		return v
	}
	return m.ValInt
}

func (m *MockRand) Float64() float64 {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Floats) > 0 {
		v := m.Floats[0]
		m.Floats = m.Floats[1:]
		return v
	}
	return m.ValFloat
}

// ScriptedProcess sets each instrument's price from a fixed per-ticker script.
type ScriptedProcess struct {
	Prices map[string][]float64
	Volume float64
	Mu     sync.Mutex
}

func (s *ScriptedProcess) Advance(inst *pricegen.Instrument) (float64, float64) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if script := s.Prices[inst.Ticker]; len(script) > 0 {
		inst.CurrentPrice = script[0]
		s.Prices[inst.Ticker] = script[1:]
	}
	return inst.CurrentPrice, s.Volume
}

// RecordingSink keeps every record it is handed.
type RecordingSink struct {
	Records    []models.AnalyticsRecord
	ShouldFail bool
	Delay      time.Duration
	Mu         sync.Mutex
}

func (r *RecordingSink) Send(ctx context.Context, rec models.AnalyticsRecord) error {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ShouldFail {
		return errors.New("sink unavailable")
	}
	r.Records = append(r.Records, rec)
	return nil
}

func (r *RecordingSink) Snapshot() []models.AnalyticsRecord {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	out := make([]models.AnalyticsRecord, len(r.Records))
	copy(out, r.Records)
	return out
}

// ByTicker groups recorded records per ticker in arrival order.
func (r *RecordingSink) ByTicker() map[string][]models.AnalyticsRecord {
	out := make(map[string][]models.AnalyticsRecord)
	for _, rec := range r.Snapshot() {
		out[rec.Ticker] = append(out[rec.Ticker], rec)
	}
	return out
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
	Closed     bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

type MockKafkaConn struct {
	CreatedTopics []string
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
	Fail    bool
	Dials   []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (sink.KafkaConn, error) {
	m.Dials = append(m.Dials, address)
	if m.Fail {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}

// MockClock hands out pre-fired timers so driver loops run without real waits.
type MockClock struct {
	CurrentTime time.Time
	Waits       []time.Duration
	Mu          sync.Mutex
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Waits = append(m.Waits, d)
	if d > 0 {
		m.CurrentTime = m.CurrentTime.Add(d)
	}
	ch := make(chan time.Time, 1)
	ch <- m.CurrentTime
	return ch
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}
