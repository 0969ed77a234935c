package scheduler

import (
	"time"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/pricegen"
)

// Advancer produces the next price and volume for an instrument
type Advancer interface {
	Advance(inst *pricegen.Instrument) (price, volume float64)
}

// for deterministic testing
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type State int32

const (
	Idle State = iota
	Ticking
)

func (s State) String() string {
	if s == Ticking {
		return "TICKING"
	}
	return "IDLE"
}
