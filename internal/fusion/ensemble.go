package fusion

// fuseEnsemble aggregates pre-computed model predictions, which arrive as
// ordinary signals tagged with their model source. Weights are the learned
// per-source ensemble weights from the performance snapshot, scaled by each
// prediction's own confidence.
func (e *Engine) fuseEnsemble(in Input) (float64, float64, map[string]float64) {
	weights := make(map[string]float64, len(in.Signals))
	for _, sig := range in.Signals {
		weights[sig.Source] = in.Perf.EnsembleWeight(sig.Source) * clip01(sig.Confidence)
	}
	total := 0.0
	for _, sig := range in.Signals {
		total += weights[sig.Source]
	}
	value := 0.0
	confidence := 0.0
	if total > 0 {
		for _, sig := range in.Signals {
			share := weights[sig.Source] / total
			value += sig.Value * share
			confidence += sig.Confidence * share
		}
	}
	confidence *= agreement(in, weights)
	return value, confidence, weights
}
