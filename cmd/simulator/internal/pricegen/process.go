// Package pricegen simulates instrument prices as a bounded random walk with dead-zone mean reversion
// and occasional news shocks.
package pricegen

import "math"

// Instrument is the mutable simulation state of one ticker.
type Instrument struct {
	Ticker             string
	CurrentPrice       float64
	BasePrice          float64 // anchor for mean reversion and the price band
	Volatility         float64
	MeanReversionSpeed float64
}

const DefaultMeanReversionSpeed = 0.01

func NewInstrument(ticker string, price, volatility float64) *Instrument {
	return &Instrument{
		Ticker:             ticker,
		CurrentPrice:       price,
		BasePrice:          price,
		Volatility:         volatility,
		MeanReversionSpeed: DefaultMeanReversionSpeed,
	}
}

// Params are the knobs of the price process. Probabilities are expressed as 1-in-N odds.
type Params struct {
	WalkScale      float64 // multiplier on volatility for the uniform walk
	DeadZone       float64 // relative deviation below which no reversion applies
	ReversionScale float64
	MaxMove        float64 // per-tick clamp on the relative change

	MacroOdds  int
	MacroShock float64
	MicroOdds  int
	MicroShock float64

	BandFloor   float64 // multiples of the base price
	BandCeiling float64

	MinVolume        float64
	MaxVolume        float64
	VolumeMultiplier float64 // volume boost per unit of absolute move
}

func DefaultParams() Params {
	return Params{
		WalkScale:        1.5,
		DeadZone:         0.10,
		ReversionScale:   0.5,
		MaxMove:          0.08,
		MacroOdds:        50,
		MacroShock:       0.03,
		MicroOdds:        10,
		MicroShock:       0.01,
		BandFloor:        0.7,
		BandCeiling:      1.4,
		MinVolume:        50_000,
		MaxVolume:        2_000_000,
		VolumeMultiplier: 8,
	}
}

// Process advances instruments one tick at a time using an injected random source.
type Process struct {
	params Params
	rand   Rand
}

func NewProcess(params Params, rnd Rand) *Process {
	return &Process{params: params, rand: rnd}
}

// Advance moves inst to its next price and returns that price with a synthetic trade volume.
// The result always lies within [BandFloor*base, BandCeiling*base].
func (p *Process) Advance(inst *Instrument) (price, volume float64) {
	walk := p.uniform(-1, 1) * inst.Volatility * p.params.WalkScale

	var reversion float64
	deviation := (inst.CurrentPrice - inst.BasePrice) / inst.BasePrice
	if math.Abs(deviation) > p.params.DeadZone {
		reversion = -deviation * inst.MeanReversionSpeed * p.params.ReversionScale
	}

	var news float64
	switch {
	case p.rand.Intn(p.params.MacroOdds) == 0:
		news = p.uniform(-p.params.MacroShock, p.params.MacroShock)
	case p.rand.Intn(p.params.MicroOdds) == 0:
		news = p.uniform(-p.params.MicroShock, p.params.MicroShock)
	}

	change := clamp(walk+reversion+news, -p.params.MaxMove, p.params.MaxMove)
	inst.CurrentPrice *= 1 + change
	inst.CurrentPrice = clamp(inst.CurrentPrice, inst.BasePrice*p.params.BandFloor, inst.BasePrice*p.params.BandCeiling)

	volume = p.uniform(p.params.MinVolume, p.params.MaxVolume) * (1 + math.Abs(change)*p.params.VolumeMultiplier)

	return inst.CurrentPrice, volume
}

// uniform draws from [lo, hi)
func (p *Process) uniform(lo, hi float64) float64 {
	return lo + p.rand.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
