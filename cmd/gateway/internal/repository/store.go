package repository

import (
	"context"
)

// FeedStore is the gateway's view of the analytics feed: latest snapshots, per-ticker
// pub/sub and the publish side used by ingestion.
type FeedStore interface {
	Snapshots(ctx context.Context, tickers []string) (map[string]string, error)
	Subscribe(ctx context.Context, ticker string) error
	Unsubscribe(ctx context.Context, ticker string) error
	Listen(ctx context.Context, onMessage func(ticker, payload string))
	Publish(ctx context.Context, ticker string, payload []byte) error
	Close() error
}
