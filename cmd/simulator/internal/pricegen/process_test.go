package pricegen_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/pricegen"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/testutils"
)

func TestAdvance_NoMoveWhenWalkIsCentred(t *testing.T) {
	// Float 0.5 -> walk (2*0.5-1)=0; Intn 1 -> neither news branch fires
	rnd := &testutils.MockRand{ValInt: 1, ValFloat: 0.5}
	proc := pricegen.NewProcess(pricegen.DefaultParams(), rnd)
	inst := pricegen.NewInstrument("AAPL", 100, 0.01)

	price, volume := proc.Advance(inst)

	assert.Equal(t, 100.0, price)
	assert.Equal(t, 100.0, inst.CurrentPrice)
	// 50k + 0.5*(2M-50k), no move multiplier
	assert.InDelta(t, 1_025_000.0, volume, 1e-6)
}

func TestAdvance_WalkScalesWithVolatility(t *testing.T) {
	// walk draw 1.0 -> +1 * 0.01 * 1.5 = 1.5%
	rnd := &testutils.MockRand{Floats: []float64{1.0, 0.0}, ValInt: 1}
	proc := pricegen.NewProcess(pricegen.DefaultParams(), rnd)
	inst := pricegen.NewInstrument("AAPL", 100, 0.01)

	price, volume := proc.Advance(inst)

	assert.InDelta(t, 101.5, price, 1e-9)
	// min volume 50k boosted by 1 + 0.015*8
	assert.InDelta(t, 50_000*1.12, volume, 1e-6)
}

func TestAdvance_MacroNewsTakesPrecedence(t *testing.T) {
	// walk 0, macro fires (Intn 0), shock draw 1.0 -> +3%
	rnd := &testutils.MockRand{Floats: []float64{0.5, 1.0, 0.5}, Ints: []int{0}, ValInt: 0}
	proc := pricegen.NewProcess(pricegen.DefaultParams(), rnd)
	inst := pricegen.NewInstrument("BTC", 42000, 0.02)

	price, _ := proc.Advance(inst)

	assert.InDelta(t, 42000*1.03, price, 1e-6)
}

func TestAdvance_MicroNewsWhenMacroMisses(t *testing.T) {
	// macro misses (1), micro hits (0), shock draw 0.0 -> -1%
	rnd := &testutils.MockRand{Floats: []float64{0.5, 0.0, 0.5}, Ints: []int{1, 0}, ValInt: 1}
	proc := pricegen.NewProcess(pricegen.DefaultParams(), rnd)
	inst := pricegen.NewInstrument("AAPL", 100, 0.005)

	price, _ := proc.Advance(inst)

	assert.InDelta(t, 99.0, price, 1e-9)
}

func TestAdvance_MeanReversionDeadZone(t *testing.T) {
	params := pricegen.DefaultParams()

	// 5% above base: inside dead zone, no pull
	inside := pricegen.NewInstrument("X", 100, 0.01)
	inside.CurrentPrice = 105
	pricegen.NewProcess(params, &testutils.MockRand{ValInt: 1, ValFloat: 0.5}).Advance(inside)
	assert.InDelta(t, 105.0, inside.CurrentPrice, 1e-9)

	// 20% above base: pull of -0.2*0.01*0.5 = -0.1%
	outside := pricegen.NewInstrument("X", 100, 0.01)
	outside.CurrentPrice = 120
	pricegen.NewProcess(params, &testutils.MockRand{ValInt: 1, ValFloat: 0.5}).Advance(outside)
	assert.InDelta(t, 120*(1-0.001), outside.CurrentPrice, 1e-9)
}

func TestAdvance_PerTickMoveIsClamped(t *testing.T) {
	// volatility 0.1 -> walk 15% but clamp is 8%
	rnd := &testutils.MockRand{Floats: []float64{1.0}, ValInt: 1, ValFloat: 0.5}
	proc := pricegen.NewProcess(pricegen.DefaultParams(), rnd)
	inst := pricegen.NewInstrument("X", 100, 0.1)

	price, _ := proc.Advance(inst)

	assert.InDelta(t, 108.0, price, 1e-9)
}

func TestAdvance_PriceBandIsHard(t *testing.T) {
	proc := pricegen.NewProcess(pricegen.DefaultParams(), &testutils.MockRand{ValInt: 1, ValFloat: 1.0})
	inst := pricegen.NewInstrument("X", 100, 0.1)
	inst.CurrentPrice = 139

	price, _ := proc.Advance(inst)
	assert.InDelta(t, 140.0, price, 1e-9)

	proc = pricegen.NewProcess(pricegen.DefaultParams(), &testutils.MockRand{ValInt: 1, ValFloat: 0.0})
	inst.CurrentPrice = 71
	price, _ = proc.Advance(inst)
	assert.InDelta(t, 70.0, price, 1e-9)
}

func TestAdvance_StaysInBoundsWithRealRandomness(t *testing.T) {
	for _, vol := range []float64{0.005, 0.01, 0.02, 0.05} {
		proc := pricegen.NewProcess(pricegen.DefaultParams(), pricegen.NewRand(42))
		inst := pricegen.NewInstrument("X", 100, vol)

		for i := 0; i < 1000; i++ {
			price, volume := proc.Advance(inst)
			require.False(t, math.IsNaN(price) || math.IsInf(price, 0), "price must be finite")
			require.GreaterOrEqual(t, price, inst.BasePrice*0.7)
			require.LessOrEqual(t, price, inst.BasePrice*1.4)
			require.Greater(t, volume, 0.0)
		}
	}
}

func TestNewRand_SeedIsReproducible(t *testing.T) {
	a, b := pricegen.NewRand(7), pricegen.NewRand(7)
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}
