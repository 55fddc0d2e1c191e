package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration for the fusion core.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Fusion   FusionConfig   `yaml:"fusion"`
	Conflict ConflictConfig `yaml:"conflict"`
	Risk     RiskConfig     `yaml:"risk"`
	Sizing   SizingConfig   `yaml:"sizing"`
	Stops    StopsConfig    `yaml:"stops"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
}

type AppConfig struct {
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`
	HTTPAddr    string `yaml:"http_addr"`
	LogPath     string `yaml:"log_path"`
	WeightsPath string `yaml:"weights_path"`
}

// FusionConfig selects and tunes the fusion algorithm.
type FusionConfig struct {
	Algorithm string `yaml:"algorithm"` // weighted | bayesian | ensemble
	// PriorStrength is the precision of the flat directional prior used by
	// the bayesian algorithm. Larger values pull the posterior toward zero.
	PriorStrength float64 `yaml:"prior_strength"`
}

type ConflictConfig struct {
	// AnalyzerWeights keys: direction, timing, risk_approach, indicator.
	AnalyzerWeights map[string]float64 `yaml:"analyzer_weights"`
	// ConfidenceGap is the minimum weighted-confidence margin required for
	// the confidence strategy to declare a definitive winner.
	ConfidenceGap float64 `yaml:"confidence_gap"`
	// FallbackMultiplier shrinks position size when no strategy produces a
	// definitive winner, or when severity is critical.
	FallbackMultiplier float64 `yaml:"fallback_multiplier"`
}

type RiskConfig struct {
	// ComponentWeights keys: var, shortfall, concentration, liquidity.
	ComponentWeights map[string]float64 `yaml:"component_weights"`
	VaRConfidence    float64            `yaml:"var_confidence"`
	// Bands map a minimum overall risk score to a size multiplier. Entries
	// are evaluated highest score first.
	Bands []RiskBand `yaml:"bands"`
}

type RiskBand struct {
	MinScore   float64 `yaml:"min_score"`
	Multiplier float64 `yaml:"multiplier"`
}

type SizingConfig struct {
	// MethodWeights keys: kelly, fixed_fraction, volatility.
	MethodWeights  map[string]float64 `yaml:"method_weights"`
	KellyCap       float64            `yaml:"kelly_cap"`
	FixedFraction  float64            `yaml:"fixed_fraction"`
	TargetVol      float64            `yaml:"target_vol"`
	MaxExposurePct float64            `yaml:"max_exposure_pct"`
}

type StopsConfig struct {
	ATRMultiplier      float64 `yaml:"atr_multiplier"`
	StructureBufferPct float64 `yaml:"structure_buffer_pct"`
	MinRiskReward      float64 `yaml:"min_risk_reward"`
	TrailTriggerMult   float64 `yaml:"trail_trigger_multiplier"`
	TrailMult          float64 `yaml:"trail_multiplier"`
}

type PipelineConfig struct {
	Quorum           int          `yaml:"quorum"`
	CycleTimeoutMS   int          `yaml:"cycle_timeout_ms"`
	StalenessSeconds int          `yaml:"staleness_seconds"`
	InboxCapacity    int          `yaml:"inbox_capacity"`
	Pairs            []PairConfig `yaml:"pairs"`
}

// PairConfig declares one (symbol, timeframe) decision stream and the
// agents expected to contribute to it each cycle.
type PairConfig struct {
	Symbol         string   `yaml:"symbol"`
	Timeframe      string   `yaml:"timeframe"`
	ExpectedAgents []string `yaml:"expected_agents"`
}

type StoreConfig struct {
	DecisionLogPath string `yaml:"decision_log_path"`
}

func (p PipelineConfig) CycleTimeout() time.Duration {
	if p.CycleTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.CycleTimeoutMS) * time.Millisecond
}

func (p PipelineConfig) Staleness() time.Duration {
	if p.StalenessSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(p.StalenessSeconds) * time.Second
}

// keySet tracks which config paths were explicitly set in the files, so
// defaults never clobber an intentional zero.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
