package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shubham-shewale/market-analytics/pkg/feed"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

// RedisSink stores the latest record per ticker and publishes it to the ticker's channel,
// the same layout the processor produces from Kafka.
type RedisSink struct {
	client feed.PipelineClient
}

func NewRedisSink(client feed.PipelineClient) *RedisSink {
	return &RedisSink{client: client}
}

func (r *RedisSink) Send(ctx context.Context, rec models.AnalyticsRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := feed.Publish(ctx, r.client, rec.Ticker, payload); err != nil {
		return fmt.Errorf("redis publish %s: %w", rec.Ticker, err)
	}
	return nil
}
