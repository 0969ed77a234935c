// Package analysis derives rolling statistics from a price window and classifies anomalies.
//
// Every statistic is optional: when the window is too short the value is reported as absent
// rather than as an error.
package analysis

import "math"

// MovingAverage is the mean of the last n prices, absent when fewer than n are available.
func MovingAverage(prices []float64, n int) (float64, bool) {
	if n <= 0 || len(prices) < n {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-n:] {
		sum += p
	}
	return sum / float64(n), true
}

// StdDev is the population standard deviation over the whole window, absent below two samples.
func StdDev(prices []float64) (float64, bool) {
	if len(prices) < 2 {
		return 0, false
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))

	var variance float64
	for _, p := range prices {
		d := p - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(prices))), true
}

// PercentChange compares the latest price to the one before it, in percent.
func PercentChange(prices []float64) (float64, bool) {
	if len(prices) < 2 {
		return 0, false
	}
	prev, latest := prices[len(prices)-2], prices[len(prices)-1]
	return (latest - prev) / prev * 100, true
}

// Windows are the moving average lengths.
type Windows struct {
	Short int
	Long  int
}

func DefaultWindows() Windows { return Windows{Short: 5, Long: 20} }

// Snapshot is the set of statistics recomputed for a ticker on every tick. Nil means absent.
type Snapshot struct {
	ShortMA       *float64
	LongMA        *float64
	PercentChange *float64
	StdDev        *float64
}

func Summarize(prices []float64, w Windows) Snapshot {
	return Snapshot{
		ShortMA:       optional(MovingAverage(prices, w.Short)),
		LongMA:        optional(MovingAverage(prices, w.Long)),
		PercentChange: optional(PercentChange(prices)),
		StdDev:        optional(StdDev(prices)),
	}
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
