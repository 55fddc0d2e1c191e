package config

const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultAppHTTPAddr  = ":9984"
	defaultAppLogPath   = ""
	defaultWeightsPath  = "configs/weights.yaml"
	defaultFusionAlgo   = "weighted"
	defaultPriorForce   = 1.0
	defaultConfGap      = 0.15
	defaultFallbackMult = 0.3
	defaultVaRConf      = 0.95
	defaultKellyCap     = 0.25
	defaultFixedFrac    = 0.02
	defaultTargetVol    = 0.02
	defaultMaxExposure  = 0.1
	defaultATRMult      = 2.0
	defaultStructBuffer = 0.002
	defaultMinRR        = 2.0
	defaultTrailTrigger = 3.0
	defaultTrailMult    = 1.5
	defaultQuorum       = 2
	defaultCycleTimeout = 2000
	defaultStalenessSec = 90
	defaultInboxCap     = 64
	defaultDecisionLog  = "data/decisions.db"
)

func defaultAnalyzerWeights() map[string]float64 {
	return map[string]float64{
		"direction":     0.4,
		"timing":        0.2,
		"risk_approach": 0.2,
		"indicator":     0.2,
	}
}

func defaultRiskComponents() map[string]float64 {
	return map[string]float64{
		"var":           0.35,
		"shortfall":     0.25,
		"concentration": 0.2,
		"liquidity":     0.2,
	}
}

func defaultMethodWeights() map[string]float64 {
	return map[string]float64{
		"kelly":          0.4,
		"fixed_fraction": 0.3,
		"volatility":     0.3,
	}
}

func defaultRiskBands() []RiskBand {
	return []RiskBand{
		{MinScore: 8, Multiplier: 0.3},
		{MinScore: 6, Multiplier: 0.5},
		{MinScore: 4, Multiplier: 0.7},
		{MinScore: 2, Multiplier: 0.85},
		{MinScore: 0, Multiplier: 1.0},
	}
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Fusion.applyDefaults(keys)
	c.Conflict.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Sizing.applyDefaults(keys)
	c.Stops.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.weights_path", &a.WeightsPath, defaultWeightsPath),
	)
}

func (f *FusionConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("fusion.algorithm", &f.Algorithm, defaultFusionAlgo),
		floatFieldDefault("fusion.prior_strength", &f.PriorStrength, defaultPriorForce),
	)
}

func (c *ConflictConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	if len(c.AnalyzerWeights) == 0 {
		c.AnalyzerWeights = defaultAnalyzerWeights()
	}
	applyFieldDefaults(keys,
		floatFieldDefault("conflict.confidence_gap", &c.ConfidenceGap, defaultConfGap),
		floatFieldDefault("conflict.fallback_multiplier", &c.FallbackMultiplier, defaultFallbackMult),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	if len(r.ComponentWeights) == 0 {
		r.ComponentWeights = defaultRiskComponents()
	}
	if len(r.Bands) == 0 {
		r.Bands = defaultRiskBands()
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.var_confidence", &r.VaRConfidence, defaultVaRConf),
	)
}

func (s *SizingConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	if len(s.MethodWeights) == 0 {
		s.MethodWeights = defaultMethodWeights()
	}
	applyFieldDefaults(keys,
		floatFieldDefault("sizing.kelly_cap", &s.KellyCap, defaultKellyCap),
		floatFieldDefault("sizing.fixed_fraction", &s.FixedFraction, defaultFixedFrac),
		floatFieldDefault("sizing.target_vol", &s.TargetVol, defaultTargetVol),
		floatFieldDefault("sizing.max_exposure_pct", &s.MaxExposurePct, defaultMaxExposure),
	)
}

func (s *StopsConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("stops.atr_multiplier", &s.ATRMultiplier, defaultATRMult),
		floatFieldDefault("stops.structure_buffer_pct", &s.StructureBufferPct, defaultStructBuffer),
		floatFieldDefault("stops.min_risk_reward", &s.MinRiskReward, defaultMinRR),
		floatFieldDefault("stops.trail_trigger_multiplier", &s.TrailTriggerMult, defaultTrailTrigger),
		floatFieldDefault("stops.trail_multiplier", &s.TrailMult, defaultTrailMult),
	)
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("pipeline.quorum", &p.Quorum, defaultQuorum),
		intFieldDefault("pipeline.cycle_timeout_ms", &p.CycleTimeoutMS, defaultCycleTimeout),
		intFieldDefault("pipeline.staleness_seconds", &p.StalenessSeconds, defaultStalenessSec),
		intFieldDefault("pipeline.inbox_capacity", &p.InboxCapacity, defaultInboxCap),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.decision_log_path", &s.DecisionLogPath, defaultDecisionLog),
	)
}

func applyFieldDefaults(keys keySet, fields ...fieldDefault) {
	for _, f := range fields {
		if keys.isSet(f.key) {
			continue
		}
		if f.need == nil || f.need() {
			f.apply()
		}
	}
}

func stringFieldDefault(key string, target *string, value string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == "" },
		apply: func() { *target = value },
	}
}

func floatFieldDefault(key string, target *float64, value float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = value },
	}
}

func intFieldDefault(key string, target *int, value int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = value },
	}
}
