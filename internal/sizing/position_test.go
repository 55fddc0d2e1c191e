package sizing

import (
	"testing"

	"fusor/internal/config"

	"github.com/stretchr/testify/assert"
)

func sizerInput() Input {
	return Input{
		Confidence:      0.7,
		EquityUSD:       100_000,
		EntryPrice:      50_000,
		StopDistancePct: 0.02,
		RealizedVol:     0.03,
		RiskMultiplier:  1,
		ResolutionMult:  1,
	}
}

func TestSizeDeterministic(t *testing.T) {
	s := NewSizer(config.SizingConfig{}, nil)
	first := s.Size(sizerInput())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Size(sizerInput()))
	}
}

func TestSizeBlendsAllMethods(t *testing.T) {
	s := NewSizer(config.SizingConfig{}, nil)
	out := s.Size(sizerInput())

	assert.Contains(t, out.Fractions, "kelly")
	assert.Contains(t, out.Fractions, "fixed_fraction")
	assert.Contains(t, out.Fractions, "volatility")
	assert.Greater(t, out.NotionalUSD, 0.0)
	assert.InDelta(t, out.NotionalUSD/50_000, out.SizeUnits, 1e-9)
	assert.InDelta(t, out.NotionalUSD*0.02, out.RiskAmountUSD, 1e-9)
}

func TestSizeRespectsExposureCap(t *testing.T) {
	s := NewSizer(config.SizingConfig{MaxExposurePct: 0.1}, nil)
	in := sizerInput()
	in.Confidence = 1
	in.StopDistancePct = 0.001 // drives fixed-fractional through the roof

	out := s.Size(in)
	assert.LessOrEqual(t, out.NotionalUSD, 100_000*0.1+1e-9)
}

func TestSizeRiskMultiplierScalesAfterCap(t *testing.T) {
	s := NewSizer(config.SizingConfig{MaxExposurePct: 0.1}, nil)
	in := sizerInput()
	in.Confidence = 1
	in.StopDistancePct = 0.001 // uncapped blend far above the cap

	full := s.Size(in)

	in.RiskMultiplier = 0.3
	reduced := s.Size(in)

	// The band multiplier applies to the capped size, so the cut is exact
	// even when the raw blend exceeded the cap.
	assert.InDelta(t, full.NotionalUSD*0.3, reduced.NotionalUSD, 1e-6)
}

func TestSizeResolutionMultiplierStacks(t *testing.T) {
	s := NewSizer(config.SizingConfig{}, nil)
	full := s.Size(sizerInput())

	in := sizerInput()
	in.RiskMultiplier = 0.5
	in.ResolutionMult = 0.3
	reduced := s.Size(in)

	assert.InDelta(t, full.NotionalUSD*0.15, reduced.NotionalUSD, 1e-6)
}

func TestSizeMonotoneNonIncreasingInRiskMultiplier(t *testing.T) {
	s := NewSizer(config.SizingConfig{}, nil)
	prev := -1.0
	for _, mult := range []float64{0.3, 0.5, 0.7, 0.85, 1.0} {
		in := sizerInput()
		in.RiskMultiplier = mult
		out := s.Size(in)
		assert.Greater(t, out.NotionalUSD, prev)
		prev = out.NotionalUSD
	}
}

func TestSizeZeroEquityOrPrice(t *testing.T) {
	s := NewSizer(config.SizingConfig{}, nil)

	in := sizerInput()
	in.EquityUSD = 0
	assert.Zero(t, s.Size(in).NotionalUSD)

	in = sizerInput()
	in.EntryPrice = 0
	assert.Zero(t, s.Size(in).SizeUnits)
}

func TestKellyFractionCapped(t *testing.T) {
	s := NewSizer(config.SizingConfig{KellyCap: 0.25}, nil)
	in := sizerInput()
	in.Confidence = 1
	in.WinRate = 0.9
	in.HasWinRate = true

	assert.InDelta(t, 0.25, s.kellyFraction(in), 1e-9)
}

func TestKellyFractionNeverNegative(t *testing.T) {
	s := NewSizer(config.SizingConfig{}, nil)
	in := sizerInput()
	in.Confidence = 0
	in.WinRate = 0.1
	in.HasWinRate = true

	assert.GreaterOrEqual(t, s.kellyFraction(in), 0.0)
}

func TestMethodWeightsFromRegistry(t *testing.T) {
	weightsFn := func() map[string]float64 {
		return map[string]float64{"kelly": 1, "fixed_fraction": 0, "volatility": 0}
	}
	s := NewSizer(config.SizingConfig{}, weightsFn)
	out := s.Size(sizerInput())

	// Only Kelly contributes, so the capped blend equals the Kelly fraction.
	expect := out.Fractions["kelly"]
	if expect > 0.1 {
		expect = 0.1
	}
	assert.InDelta(t, 100_000*expect, out.NotionalUSD, 1e-6)
}
