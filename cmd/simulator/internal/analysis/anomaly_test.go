package analysis_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/analysis"
)

func pct(v float64) *float64 { return &v }

func flat(n int, price float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = price
	}
	return prices
}

func TestDetect_Spikes(t *testing.T) {
	d := analysis.DefaultDetector()
	prices := []float64{100, 100, 100}

	up := d.Detect(prices, 110, pct(10))
	require.NotNil(t, up)
	assert.Equal(t, analysis.KindSpikeUp, up.Kind)
	assert.Equal(t, "Price spiked up 10.00% in one interval", up.Message)

	down := d.Detect(prices, 90, pct(-10))
	require.NotNil(t, down)
	assert.Equal(t, analysis.KindSpikeDown, down.Kind)
	assert.Equal(t, "Price dropped 10.00% in one interval", down.Message)

	assert.Nil(t, d.Detect(prices, 102, pct(2)))
}

func TestDetect_ThresholdIsExclusive(t *testing.T) {
	d := analysis.DefaultDetector()
	assert.Nil(t, d.Detect([]float64{100, 105}, 105, pct(5.0)))
	assert.Nil(t, d.Detect([]float64{100, 95}, 95, pct(-5.0)))
}

func TestDetect_NoPercentChangeNoHistory(t *testing.T) {
	assert.Nil(t, analysis.DefaultDetector().Detect([]float64{100}, 100, nil))
}

func TestDetect_DeviationFromLongAverage(t *testing.T) {
	d := analysis.DefaultDetector()
	prices := append(flat(19, 100), 130)

	// a 2% move is no spike, so the deviation rule decides
	got := d.Detect(prices, 130, pct(2))
	require.NotNil(t, got)
	assert.Equal(t, analysis.KindDeviation, got.Kind)
	assert.Equal(t, "ANOMALY", string(got.Kind))
	assert.True(t, strings.HasPrefix(got.Message, "Price deviated 28.50 from MA20 (101.50)"), got.Message)
	assert.Contains(t, got.Message, "(6.54)")
}

func TestDetect_SpikeWinsOverDeviation(t *testing.T) {
	prices := append(flat(19, 100), 130)

	got := analysis.DefaultDetector().Detect(prices, 130, pct(30))
	require.NotNil(t, got)
	assert.Equal(t, analysis.KindSpikeUp, got.Kind)
}

func TestDetect_DeviationNeedsLongWindow(t *testing.T) {
	prices := append(flat(18, 100), 130)

	assert.Nil(t, analysis.DefaultDetector().Detect(prices, 130, pct(2)))
}

func TestDetect_FlatSeriesIsQuiet(t *testing.T) {
	assert.Nil(t, analysis.DefaultDetector().Detect(flat(100, 100), 100, pct(0)))
}
