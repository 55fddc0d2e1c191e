package fusion

import (
	"testing"
	"time"

	"fusor/internal/config"
	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/signal"

	"github.com/stretchr/testify/assert"
)

var asOf = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func agreeingInput() Input {
	return Input{
		Signals: []signal.Normalized{
			{Source: "a1", Value: 0.8, Confidence: 0.8, Freshness: 1},
			{Source: "a2", Value: 0.7, Confidence: 0.7, Freshness: 1},
			{Source: "a3", Value: 0.75, Confidence: 0.9, Freshness: 1},
		},
		AsOf: asOf,
	}
}

func opposedInput() Input {
	return Input{
		Signals: []signal.Normalized{
			{Source: "bull", Value: 0.8, Confidence: 0.8, Freshness: 1},
			{Source: "bear", Value: -0.8, Confidence: 0.8, Freshness: 1},
		},
		AsOf: asOf,
	}
}

func assertInvariants(t *testing.T, f Fused, n int) {
	t.Helper()
	assert.GreaterOrEqual(t, f.Value, -1.0)
	assert.LessOrEqual(t, f.Value, 1.0)
	assert.GreaterOrEqual(t, f.Confidence, 0.0)
	assert.LessOrEqual(t, f.Confidence, 1.0)
	assert.InDelta(t, 1.0, f.Confidence+f.Uncertainty, 1e-9)
	sum := 0.0
	for _, w := range f.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Len(t, f.Weights, n)
}

func TestFuseInvariantsAllAlgorithms(t *testing.T) {
	for _, algo := range []string{"weighted", "bayesian", "ensemble"} {
		t.Run(algo, func(t *testing.T) {
			engine, err := NewEngine(config.FusionConfig{Algorithm: algo})
			assert.NoError(t, err)

			for name, in := range map[string]Input{"agreeing": agreeingInput(), "opposed": opposedInput()} {
				f, err := engine.Fuse(in)
				assert.NoError(t, err, name)
				assertInvariants(t, f, len(in.Signals))
				assert.Equal(t, algo, f.Algorithm)
				assert.Equal(t, asOf, f.GeneratedAt)
			}
		})
	}
}

func TestFuseNoSignals(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{})
	_, err := engine.Fuse(Input{AsOf: asOf})
	assert.ErrorIs(t, err, ErrInsufficientSignals)
}

func TestFuseSingleSignalPassthrough(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{})
	f, err := engine.Fuse(Input{
		Signals: []signal.Normalized{{Source: "only", Value: -0.4, Confidence: 0.5, Freshness: 1}},
		AsOf:    asOf,
	})
	assert.NoError(t, err)
	assert.InDelta(t, -0.4, f.Value, 1e-9)
	assert.InDelta(t, 0.5, f.Confidence, 1e-9)
	assert.InDelta(t, 1.0, f.Weights["only"], 1e-9)
}

func TestFuseIdempotent(t *testing.T) {
	for _, algo := range []string{"weighted", "bayesian", "ensemble"} {
		engine, _ := NewEngine(config.FusionConfig{Algorithm: algo})
		in := agreeingInput()
		in.Market = market.Context{Regime: market.RegimeTrending, RealizedVol: 0.03}

		first, err := engine.Fuse(in)
		assert.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := engine.Fuse(in)
			assert.NoError(t, err)
			assert.Equal(t, first, again, algo)
		}
	}
}

func TestFuseDisagreementLowersConfidence(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{Algorithm: "weighted"})

	agree, err := engine.Fuse(agreeingInput())
	assert.NoError(t, err)
	opposed, err := engine.Fuse(opposedInput())
	assert.NoError(t, err)

	assert.Less(t, opposed.Confidence, agree.Confidence)
	assert.InDelta(t, 0.0, opposed.Value, 1e-9)
}

func TestFuseWeightedFavorsConsensusDirection(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{Algorithm: "weighted"})
	f, err := engine.Fuse(agreeingInput())
	assert.NoError(t, err)
	assert.Greater(t, f.Value, 0.2)
	assert.Greater(t, f.Confidence, 0.5)
}

func TestFuseBayesianMoreEvidenceTightensPosterior(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{Algorithm: "bayesian", PriorStrength: 1})

	two, err := engine.Fuse(Input{
		Signals: []signal.Normalized{
			{Source: "a1", Value: 0.6, Confidence: 0.7},
			{Source: "a2", Value: 0.6, Confidence: 0.7},
		},
		AsOf: asOf,
	})
	assert.NoError(t, err)

	four, err := engine.Fuse(Input{
		Signals: []signal.Normalized{
			{Source: "a1", Value: 0.6, Confidence: 0.7},
			{Source: "a2", Value: 0.6, Confidence: 0.7},
			{Source: "a3", Value: 0.6, Confidence: 0.7},
			{Source: "a4", Value: 0.6, Confidence: 0.7},
		},
		AsOf: asOf,
	})
	assert.NoError(t, err)
	assert.Greater(t, four.Confidence, two.Confidence)
}

func TestFuseEnsembleUsesLearnedWeights(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{Algorithm: "ensemble"})
	tracker := performance.NewTracker()
	perf := tracker.Publish(map[string]performance.AgentStats{
		"strong-model": {EnsembleWeight: 3},
		"weak-model":   {EnsembleWeight: 0.5},
	})

	f, err := engine.Fuse(Input{
		Signals: []signal.Normalized{
			{Source: "strong-model", Value: 0.9, Confidence: 0.8},
			{Source: "weak-model", Value: -0.9, Confidence: 0.8},
		},
		Perf: perf,
		AsOf: asOf,
	})
	assert.NoError(t, err)
	assert.Greater(t, f.Value, 0.0)
	assert.Greater(t, f.Weights["strong-model"], f.Weights["weak-model"])
}

func TestFuseZeroConfidenceFallsBackToEqualWeights(t *testing.T) {
	engine, _ := NewEngine(config.FusionConfig{Algorithm: "weighted"})
	f, err := engine.Fuse(Input{
		Signals: []signal.Normalized{
			{Source: "a1", Value: 0.5, Confidence: 0},
			{Source: "a2", Value: -0.5, Confidence: 0},
		},
		AsOf: asOf,
	})
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, f.Weights["a1"], 1e-9)
	assert.InDelta(t, 0.5, f.Weights["a2"], 1e-9)
	assert.Zero(t, f.Confidence)
}
