package analysis

import (
	"fmt"
	"math"
)

type Kind string

const (
	KindSpikeUp   Kind = "SPIKE_UP"
	KindSpikeDown Kind = "SPIKE_DOWN"
	// KindDeviation is reported downstream under the generic "ANOMALY" label.
	KindDeviation Kind = "ANOMALY"
)

type Anomaly struct {
	Kind    Kind
	Message string
}

// Detector classifies the newest observation of a window. At most one anomaly is reported,
// spikes winning over deviation from the long moving average.
type Detector struct {
	SpikeThreshold      float64 // percent, symmetric
	DeviationMultiplier float64 // standard deviations away from the long MA
	LongWindow          int
}

func DefaultDetector() Detector {
	return Detector{SpikeThreshold: 5.0, DeviationMultiplier: 2.0, LongWindow: 20}
}

// Detect returns nil when the observation is unremarkable or there is too little history to judge it.
func (d Detector) Detect(prices []float64, current float64, pct *float64) *Anomaly {
	if pct != nil {
		if *pct > d.SpikeThreshold {
			return &Anomaly{Kind: KindSpikeUp, Message: fmt.Sprintf("Price spiked up %.2f%% in one interval", *pct)}
		}
		if *pct < -d.SpikeThreshold {
			return &Anomaly{Kind: KindSpikeDown, Message: fmt.Sprintf("Price dropped %.2f%% in one interval", math.Abs(*pct))}
		}
	}

	if len(prices) < d.LongWindow {
		return nil
	}
	ma, okMA := MovingAverage(prices, d.LongWindow)
	sd, okSD := StdDev(prices)
	if !okMA || !okSD {
		return nil
	}

	deviation := math.Abs(current - ma)
	if deviation > d.DeviationMultiplier*sd {
		return &Anomaly{
			Kind: KindDeviation,
			Message: fmt.Sprintf("Price deviated %.2f from MA%d (%.2f), exceeding %g std devs (%.2f)",
				deviation, d.LongWindow, ma, d.DeviationMultiplier, sd),
		}
	}
	return nil
}
