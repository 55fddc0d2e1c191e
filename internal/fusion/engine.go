package fusion

import (
	"fmt"
	"math"

	"fusor/internal/config"
)

// Engine fuses normalized signals with the algorithm fixed at construction.
type Engine struct {
	algo Algorithm
	cfg  config.FusionConfig
}

func NewEngine(cfg config.FusionConfig) (*Engine, error) {
	algo, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.PriorStrength <= 0 {
		cfg.PriorStrength = 1
	}
	return &Engine{algo: algo, cfg: cfg}, nil
}

func (e *Engine) Algorithm() Algorithm { return e.algo }

// Fuse combines the input signals. A single signal bypasses fusion and is
// passed through with its own confidence; zero signals is an error.
func (e *Engine) Fuse(in Input) (Fused, error) {
	switch len(in.Signals) {
	case 0:
		return Fused{}, ErrInsufficientSignals
	case 1:
		only := in.Signals[0]
		return e.finish(only.Value, only.Confidence, map[string]float64{only.Source: 1}, in)
	}

	var value, confidence float64
	var weights map[string]float64
	switch e.algo {
	case AlgorithmBayesian:
		value, confidence, weights = e.fuseBayesian(in)
	case AlgorithmEnsemble:
		value, confidence, weights = e.fuseEnsemble(in)
	default:
		value, confidence, weights = e.fuseWeighted(in)
	}
	return e.finish(value, confidence, weights, in)
}

// finish clips ranges, normalizes weights and enforces the numeric
// invariants shared by all algorithms.
func (e *Engine) finish(value, confidence float64, weights map[string]float64, in Input) (Fused, error) {
	if !isFinite(value) || !isFinite(confidence) {
		return Fused{}, fmt.Errorf("%w: value=%v confidence=%v", ErrNonFinite, value, confidence)
	}
	normalized, err := normalizeWeights(weights, in)
	if err != nil {
		return Fused{}, err
	}
	confidence = clip01(confidence)
	return Fused{
		Value:       clip11(value),
		Confidence:  confidence,
		Uncertainty: 1 - confidence,
		Algorithm:   e.algo.String(),
		Weights:     normalized,
		GeneratedAt: in.AsOf.UTC(),
	}, nil
}

// normalizeWeights rescales weights to sum to exactly 1, summing in signal
// order so identical inputs sum identically.
func normalizeWeights(weights map[string]float64, in Input) (map[string]float64, error) {
	total := 0.0
	for _, sig := range in.Signals {
		w := weights[sig.Source]
		if !isFinite(w) || w < 0 {
			return nil, fmt.Errorf("%w: weight for %s is %v", ErrNonFinite, sig.Source, w)
		}
		total += w
	}
	out := make(map[string]float64, len(weights))
	if total <= 0 {
		// Degenerate case (e.g. all-zero confidences): fall back to equal
		// weights so the sum-to-one invariant still holds.
		equal := 1 / float64(len(in.Signals))
		for _, sig := range in.Signals {
			out[sig.Source] = equal
		}
		return out, nil
	}
	for _, sig := range in.Signals {
		out[sig.Source] = weights[sig.Source] / total
	}
	return out, nil
}

// agreement shrinks confidence as the fused set disagrees: it is one minus
// the weighted standard deviation of the signal values.
func agreement(in Input, weights map[string]float64) float64 {
	total := 0.0
	for _, sig := range in.Signals {
		total += weights[sig.Source]
	}
	if total <= 0 {
		return 1
	}
	mean := 0.0
	for _, sig := range in.Signals {
		mean += sig.Value * weights[sig.Source] / total
	}
	variance := 0.0
	for _, sig := range in.Signals {
		d := sig.Value - mean
		variance += d * d * weights[sig.Source] / total
	}
	return clip01(1 - math.Sqrt(variance))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clip11(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
