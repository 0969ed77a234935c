package pricegen

import (
	"math/rand"
	"time"
)

// for deterministic values
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type RealRand struct{ *rand.Rand }

func (r RealRand) Intn(n int) int   { return r.Rand.Intn(n) }
func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// NewRand returns a seeded source; seed 0 seeds from the clock.
func NewRand(seed int64) RealRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return RealRand{Rand: rand.New(rand.NewSource(seed))}
}
