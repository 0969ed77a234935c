// Package sink delivers analytics records to downstream consumers. Delivery is best effort:
// callers log failures and move on, nothing is queued or retried here.
package sink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/pkg/models"
)

// Sink accepts one analytics record per call.
type Sink interface {
	Send(ctx context.Context, rec models.AnalyticsRecord) error
}

// Multi fans a record out to every sink, attempting all of them even when one fails.
type Multi []Sink

func (m Multi) Send(ctx context.Context, rec models.AnalyticsRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes records to the logger at debug level; handy when running without downstream services.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Send(ctx context.Context, rec models.AnalyticsRecord) error {
	fields := []zap.Field{
		zap.String("ticker", rec.Ticker),
		zap.Float64("price", rec.Price),
		zap.Float64("volume", rec.Volume),
		zap.Bool("is_anomaly", rec.IsAnomaly),
	}
	if rec.MovingAverage5 != nil {
		fields = append(fields, zap.Float64("ma5", *rec.MovingAverage5))
	}
	if rec.MovingAverage20 != nil {
		fields = append(fields, zap.Float64("ma20", *rec.MovingAverage20))
	}
	l.logger.Debug("Analytics record", fields...)
	return nil
}
