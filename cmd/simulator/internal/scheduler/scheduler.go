// Package scheduler drives the simulation: on every tick it advances each instrument, updates its
// rolling window, derives analytics and hands the resulting record to the telemetry sink.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/analysis"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/metrics"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/pricegen"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/sink"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/window"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

type Options struct {
	Interval    time.Duration
	SendTimeout time.Duration
	Concurrency int // parallel sink calls per sweep; 1 sends sequentially
	Capacity    int // rolling window length per ticker
	Windows     analysis.Windows
	Detector    analysis.Detector
}

func DefaultOptions() Options {
	return Options{
		Interval:    5 * time.Second,
		SendTimeout: 3 * time.Second,
		Concurrency: 1,
		Capacity:    window.DefaultCapacity,
		Windows:     analysis.DefaultWindows(),
		Detector:    analysis.DefaultDetector(),
	}
}

// Scheduler owns the instrument table and the window store. Both are guarded by mu, which a
// sweep holds in write mode from start to finish, so readers never see a half-applied sweep.
type Scheduler struct {
	logger  *zap.Logger
	process Advancer
	sink    sink.Sink
	clock   Clock
	opts    Options

	mu          sync.RWMutex
	instruments map[string]*pricegen.Instrument
	order       []string
	store       *window.Store

	state atomic.Int32
}

// New builds a scheduler over a fixed set of instruments. Later duplicates of a ticker are ignored.
func New(logger *zap.Logger, process Advancer, out sink.Sink, clock Clock, instruments []*pricegen.Instrument, opts Options) *Scheduler {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaults.SendTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	s := &Scheduler{
		logger:      logger,
		process:     process,
		sink:        out,
		clock:       clock,
		opts:        opts,
		instruments: make(map[string]*pricegen.Instrument, len(instruments)),
		store:       window.NewStore(opts.Capacity),
	}
	for _, inst := range instruments {
		if _, dup := s.instruments[inst.Ticker]; dup {
			continue
		}
		s.instruments[inst.Ticker] = inst
		s.order = append(s.order, inst.Ticker)
	}
	return s
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Run sweeps immediately and then once per interval until ctx is cancelled. Deadlines missed by a
// slow sweep are caught up back to back rather than skipped; sweeps never overlap and cancellation
// is only observed between them.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Simulation Started",
		zap.Int("instruments", len(s.order)),
		zap.Duration("interval", s.opts.Interval))

	next := s.clock.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulation stopped")
			return nil
		case <-s.clock.After(next.Sub(s.clock.Now())):
		}
		if ctx.Err() != nil {
			s.logger.Info("Simulation stopped")
			return nil
		}

		s.Sweep(ctx)
		next = next.Add(s.opts.Interval)
	}
}

// Sweep performs one tick for every instrument and dispatches the records.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Store(int32(Ticking))
	defer s.state.Store(int32(Idle))

	start := time.Now()
	records := make([]models.AnalyticsRecord, 0, len(s.order))
	for _, ticker := range s.order {
		records = append(records, s.tick(s.instruments[ticker]))
	}

	// in-flight sends finish even if shutdown starts mid-sweep
	s.dispatch(context.WithoutCancel(ctx), records)

	metrics.SweepsTotal.Inc()
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

func (s *Scheduler) tick(inst *pricegen.Instrument) models.AnalyticsRecord {
	price, volume := s.process.Advance(inst)
	now := s.clock.Now().UTC()

	s.store.Append(inst.Ticker, models.PricePoint{Price: price, Volume: volume, Timestamp: now})
	prices := s.store.Prices(inst.Ticker)

	snap := analysis.Summarize(prices, s.opts.Windows)
	rec := models.AnalyticsRecord{
		Ticker:          inst.Ticker,
		Price:           price,
		Volume:          volume,
		MovingAverage5:  snap.ShortMA,
		MovingAverage20: snap.LongMA,
		PercentChange:   snap.PercentChange,
		Timestamp:       now,
	}

	if anomaly := s.opts.Detector.Detect(prices, price, snap.PercentChange); anomaly != nil {
		rec.IsAnomaly = true
		rec.AnomalyType = string(anomaly.Kind)
		rec.AnomalyMessage = anomaly.Message

		s.logger.Info("Anomaly detected",
			zap.String("ticker", inst.Ticker),
			zap.String("type", rec.AnomalyType),
			zap.String("message", rec.AnomalyMessage))
		metrics.AnomaliesTotal.WithLabelValues(inst.Ticker, rec.AnomalyType).Inc()
	}

	metrics.TicksTotal.WithLabelValues(inst.Ticker).Inc()
	metrics.LastPrice.WithLabelValues(inst.Ticker).Set(price)
	return rec
}

// dispatch sends one record per ticker. With Concurrency > 1 different tickers are sent in
// parallel; a ticker never has two records in the same sweep, so its order is preserved.
func (s *Scheduler) dispatch(ctx context.Context, records []models.AnalyticsRecord) {
	if s.opts.Concurrency == 1 {
		for _, rec := range records {
			s.send(ctx, rec)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, rec := range records {
		g.Go(func() error {
			s.send(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) send(ctx context.Context, rec models.AnalyticsRecord) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	// a sink that ignores ctx must not hold the sweep past the timeout
	done := make(chan error, 1)
	go func() { done <- s.sink.Send(ctx, rec) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		s.logger.Warn("Failed to send price update",
			zap.String("ticker", rec.Ticker),
			zap.Error(err))
		metrics.SinkFailuresTotal.WithLabelValues(rec.Ticker).Inc()
		return
	}
	s.logger.Debug("Sent price update", zap.String("ticker", rec.Ticker), zap.Float64("price", rec.Price))
}

// Latest returns the newest observation for ticker. It waits for a running sweep to finish.
func (s *Scheduler) Latest(ticker string) (models.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Latest(ticker)
}

// History returns the ticker's rolling window, oldest first.
func (s *Scheduler) History(ticker string) []models.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Points(ticker)
}

// Tickers lists the tracked tickers in sweep order.
func (s *Scheduler) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
