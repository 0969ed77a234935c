// Package feed defines how analytics records are laid out in Redis: the latest record per ticker
// under a TTL'd key, and every record published on a per-ticker channel.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix     = "analytics:"
	ChannelPrefix = "analytics."

	// SnapshotTTL bounds how long a ticker's latest record survives once updates stop.
	SnapshotTTL = 1 * time.Hour
)

// PipelineClient is the part of a Redis client needed to publish records
type PipelineClient interface {
	Pipeline() redis.Pipeliner
}

func SnapshotKey(ticker string) string { return KeyPrefix + ticker }
func Channel(ticker string) string     { return ChannelPrefix + ticker }

// TickerFromChannel extracts the ticker from a channel name produced by Channel.
func TickerFromChannel(channel string) (string, bool) {
	ticker, ok := strings.CutPrefix(channel, ChannelPrefix)
	if !ok || ticker == "" {
		return "", false
	}
	return ticker, true
}

// Publish stores payload as the latest snapshot for ticker and fans it out on the ticker channel
// in a single pipeline round-trip.
func Publish(ctx context.Context, client PipelineClient, ticker string, payload []byte) error {
	pipe := client.Pipeline()
	pipe.Set(ctx, SnapshotKey(ticker), payload, SnapshotTTL)
	pipe.Publish(ctx, Channel(ticker), payload)

	_, err := pipe.Exec(ctx)
	return err
}
