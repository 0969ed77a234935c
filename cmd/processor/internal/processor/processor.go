// Package processor materialises analytics records from Kafka into Redis. Records are sharded by
// ticker so that each ticker is handled by exactly one worker, in partition order.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/pkg/feed"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

const (
	DefaultWorkers = 4
	queueSize      = 100
)

type Processor struct {
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int
}

func NewProcessor(numWorkers int, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &Processor{
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		numWorkers: numWorkers,
	}
}

// Run consumes until ctx is cancelled or the reader gives up, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	queues := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := range queues {
		queues[i] = make(chan []byte, queueSize)
		wg.Add(1)
		go p.worker(i, queues[i], &wg)
	}

	p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
	p.consume(ctx, queues)

	for _, q := range queues {
		close(q)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) consume(ctx context.Context, queues []chan []byte) {
	for {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			p.logger.Error("Kafka Read Error", zap.Error(err))
			continue
		}

		workerID := WorkerID(m.Key, len(queues))

		select {
		case queues[workerID] <- m.Value:
		case <-ctx.Done():
			return
		default:
			// The latest record supersedes anything queued behind it
			p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
		}
	}
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// Not derived from Run's ctx so that queued records still reach Redis during shutdown
	ctx := context.Background()

	// Safe without locking: a ticker always hashes to the same worker
	lastSeen := make(map[string]time.Time)

	for payload := range msgs {
		var rec models.AnalyticsRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		if rec.Ticker == "" {
			p.logger.Warn("Record without ticker", zap.Int("worker_id", id))
			continue
		}

		if last, ok := lastSeen[rec.Ticker]; ok && !rec.Timestamp.After(last) {
			p.logger.Debug("Skipping stale record",
				zap.String("ticker", rec.Ticker),
				zap.Time("timestamp", rec.Timestamp),
				zap.Time("last", last))
			continue
		}

		if err := feed.Publish(ctx, p.rdb, rec.Ticker, payload); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("ticker", rec.Ticker))
			continue
		}

		lastSeen[rec.Ticker] = rec.Timestamp
		p.logger.Debug("Processed", zap.String("ticker", rec.Ticker), zap.Int("worker_id", id))
	}
}

// WorkerID maps a message key onto one of n workers.
func WorkerID(key []byte, n int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(n))
}
