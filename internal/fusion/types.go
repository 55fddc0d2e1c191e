// Package fusion combines normalized signals into a single directional
// estimate with confidence, using one of three interchangeable algorithms.
package fusion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/signal"
)

// ErrInsufficientSignals means there was nothing to fuse.
var ErrInsufficientSignals = errors.New("insufficient signals")

// ErrNonFinite means fusion produced NaN or Inf; the cycle must abort
// without emitting a decision.
var ErrNonFinite = errors.New("fusion produced non-finite result")

// Algorithm selects the fusion implementation at construction time.
type Algorithm int

const (
	AlgorithmWeighted Algorithm = iota
	AlgorithmBayesian
	AlgorithmEnsemble
)

func ParseAlgorithm(raw string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "weighted", "weighted_average", "":
		return AlgorithmWeighted, nil
	case "bayesian":
		return AlgorithmBayesian, nil
	case "ensemble", "ml":
		return AlgorithmEnsemble, nil
	default:
		return AlgorithmWeighted, fmt.Errorf("unknown fusion algorithm %q", raw)
	}
}

func (a Algorithm) String() string {
	switch a {
	case AlgorithmWeighted:
		return "weighted"
	case AlgorithmBayesian:
		return "bayesian"
	case AlgorithmEnsemble:
		return "ensemble"
	default:
		return "unknown"
	}
}

// Input is everything one fusion run may read. AsOf is supplied by the
// cycle so identical inputs produce identical outputs.
type Input struct {
	Signals []signal.Normalized
	Market  market.Context
	Perf    performance.Snapshot
	AsOf    time.Time
}

// Fused is the combined directional estimate.
// Invariants: Value in [-1,1]; Confidence + Uncertainty == 1; Weights sum
// to 1 across contributing sources.
type Fused struct {
	Value       float64            `json:"value"`
	Confidence  float64            `json:"confidence"`
	Uncertainty float64            `json:"uncertainty"`
	Algorithm   string             `json:"algorithm"`
	Weights     map[string]float64 `json:"weights"`
	GeneratedAt time.Time          `json:"generated_at"`
}
