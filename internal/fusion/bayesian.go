package fusion

// fuseBayesian treats each signal as a noisy observation of the true
// directional score under a zero-mean prior. Observation precision grows
// with confidence; the posterior mean is the fused value and the shrink in
// variance relative to the prior is the fused confidence.
func (e *Engine) fuseBayesian(in Input) (float64, float64, map[string]float64) {
	const eps = 1e-6
	priorPrecision := e.cfg.PriorStrength

	weights := make(map[string]float64, len(in.Signals))
	posteriorPrecision := priorPrecision
	weightedSum := 0.0
	for _, sig := range in.Signals {
		conf := clip01(sig.Confidence)
		precision := (conf + eps) / (1 - conf + eps)
		posteriorPrecision += precision
		weightedSum += sig.Value * precision
		weights[sig.Source] = precision
	}

	value := weightedSum / posteriorPrecision
	// posteriorVar/priorVar = priorPrecision/posteriorPrecision; confidence
	// is how much the evidence tightened the prior.
	confidence := 1 - priorPrecision/posteriorPrecision
	return value, confidence, weights
}
