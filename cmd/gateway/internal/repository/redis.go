package repository

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/market-analytics/pkg/feed"
)

var _ FeedStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // serialises SUBSCRIBE/UNSUBSCRIBE on the shared connection
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		pubsub: client.Subscribe(context.Background()),
	}
}

// Snapshots returns the latest stored record per ticker. Tickers without a snapshot are absent.
func (r *RedisStore) Snapshots(ctx context.Context, tickers []string) (map[string]string, error) {
	out := make(map[string]string, len(tickers))
	if len(tickers) == 0 {
		return out, nil
	}

	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = feed.SnapshotKey(t)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			out[tickers[i]] = payload
		}
	}
	return out, nil
}

func (r *RedisStore) Subscribe(ctx context.Context, ticker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, feed.Channel(ticker))
}

func (r *RedisStore) Unsubscribe(ctx context.Context, ticker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, feed.Channel(ticker))
}

// Listen forwards feed messages to onMessage until ctx is done or the store is closed.
func (r *RedisStore) Listen(ctx context.Context, onMessage func(ticker, payload string)) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ticker, ok := feed.TickerFromChannel(msg.Channel)
			if !ok {
				continue
			}
			onMessage(ticker, msg.Payload)
		}
	}
}

func (r *RedisStore) Publish(ctx context.Context, ticker string, payload []byte) error {
	return feed.Publish(ctx, r.client, ticker, payload)
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
