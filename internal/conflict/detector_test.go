package conflict

import (
	"testing"
	"time"

	"fusor/internal/config"
	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/signal"

	"github.com/stretchr/testify/assert"
)

var detectAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func longSignal(agent string, conf float64) signal.Signal {
	return signal.Signal{
		AgentID:     agent,
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		Direction:   signal.DirectionLong,
		Confidence:  conf,
		SubmittedAt: detectAt,
	}
}

func shortSignal(agent string, conf float64) signal.Signal {
	s := longSignal(agent, conf)
	s.Direction = signal.DirectionShort
	return s
}

func TestDetectNoConflictWhenAgentsAgree(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)
	report := d.Detect([]signal.Signal{
		longSignal("a1", 0.8),
		longSignal("a2", 0.7),
	}, market.Context{})

	assert.Equal(t, LevelNone, report.Level)
	assert.Zero(t, report.Score)
	assert.Empty(t, report.Factors)
}

func TestDetectDirectionOpposition(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)

	t.Run("evenly matched camps score highest", func(t *testing.T) {
		report := d.Detect([]signal.Signal{
			longSignal("bull", 0.8),
			shortSignal("bear", 0.8),
		}, market.Context{})

		// Direction is the only triggered analyzer, so its severity is the
		// score; the quiet analyzers do not dilute it.
		assert.InDelta(t, 1.0, report.Score, 1e-9)
		assert.Equal(t, LevelCritical, report.Level)
		assert.Len(t, report.Factors, 1)
		assert.Equal(t, "direction", report.Factors[0].Analyzer)
	})

	t.Run("lopsided opposition scores lower", func(t *testing.T) {
		balanced := d.Detect([]signal.Signal{
			longSignal("bull", 0.8),
			shortSignal("bear", 0.8),
		}, market.Context{})
		lopsided := d.Detect([]signal.Signal{
			longSignal("bull", 0.9),
			shortSignal("bear", 0.2),
		}, market.Context{})

		assert.Less(t, lopsided.Score, balanced.Score)
	})
}

func TestDetectMonotoneInOpposingConfidence(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)

	prev := -1.0
	for _, bearConf := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		report := d.Detect([]signal.Signal{
			longSignal("bull", 0.9),
			shortSignal("bear", bearConf),
		}, market.Context{})
		assert.Greater(t, report.Score, prev, "bear confidence %.1f", bearConf)
		prev = report.Score
	}
}

func TestDetectTimingSpread(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)

	early := longSignal("a1", 0.8)
	early.SubmittedAt = detectAt.Add(-60 * time.Second)
	late := longSignal("a2", 0.8)
	late.SubmittedAt = detectAt

	report := d.Detect([]signal.Signal{early, late}, market.Context{})
	assert.Len(t, report.Factors, 1)
	assert.Equal(t, "timing", report.Factors[0].Analyzer)
	assert.InDelta(t, 60.0/90.0, report.Factors[0].Severity, 1e-9)
}

func TestDetectRiskApproachClash(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)

	aggressive := longSignal("a1", 0.8)
	aggressive.RiskParams.Approach = "aggressive"
	conservative := longSignal("a2", 0.8)
	conservative.RiskParams.Approach = "conservative"

	report := d.Detect([]signal.Signal{aggressive, conservative}, market.Context{})
	assert.Len(t, report.Factors, 1)
	assert.Equal(t, "risk_approach", report.Factors[0].Analyzer)
	assert.InDelta(t, 0.7, report.Factors[0].Severity, 1e-9)
}

func TestDetectContestedIndicators(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)

	bull := longSignal("a1", 0.8)
	bull.Indicators = []string{"rsi", "ema"}
	bear := shortSignal("a2", 0.8)
	bear.Indicators = []string{"rsi"}

	report := d.Detect([]signal.Signal{bull, bear}, market.Context{})

	var indicatorFactor *Factor
	for i := range report.Factors {
		if report.Factors[i].Analyzer == "indicator" {
			indicatorFactor = &report.Factors[i]
		}
	}
	assert.NotNil(t, indicatorFactor)
	assert.InDelta(t, 0.5, indicatorFactor.Severity, 1e-9)
	assert.Contains(t, indicatorFactor.Detail, "rsi")
}

func TestDetectCustomAnalyzerWeights(t *testing.T) {
	// Direction severity 1.0, indicator severity 1/3 (one contested of
	// three); the weight table decides which dominates the average.
	bull := longSignal("bull", 0.8)
	bull.Indicators = []string{"rsi", "ema", "macd"}
	bear := shortSignal("bear", 0.8)
	bear.Indicators = []string{"rsi"}
	signals := []signal.Signal{bull, bear}

	directionHeavy := NewDetector(func() map[string]float64 {
		return map[string]float64{"direction": 0.75, "indicator": 0.25}
	}, 90*time.Second).Detect(signals, market.Context{})
	indicatorHeavy := NewDetector(func() map[string]float64 {
		return map[string]float64{"direction": 0.25, "indicator": 0.75}
	}, 90*time.Second).Detect(signals, market.Context{})

	assert.InDelta(t, (1.0*0.75+1.0/3*0.25), directionHeavy.Score, 1e-9)
	assert.InDelta(t, (1.0*0.25+1.0/3*0.75), indicatorHeavy.Score, 1e-9)
	assert.Greater(t, directionHeavy.Score, indicatorHeavy.Score)
}

func TestDetectOpposedHighConfidenceEscalates(t *testing.T) {
	d := NewDetector(nil, 90*time.Second)
	signals := []signal.Signal{longSignal("bull", 0.9), shortSignal("bear", 0.85)}

	report := d.Detect(signals, market.Context{})
	assert.InDelta(t, 2*0.85/1.75, report.Score, 1e-9)
	assert.Equal(t, LevelCritical, report.Level)

	// Near-even camps leave no definitive winner; the resolver must cut
	// size to the conservative fallback and keep both scenarios.
	r := NewResolver(config.ConflictConfig{})
	res := r.Resolve(report, signals, normalizedFor(signals), market.Context{}, performance.Snapshot{})

	assert.Equal(t, StateEscalated, res.State)
	assert.Equal(t, "conservative_fallback", res.Strategy)
	assert.InDelta(t, 0.3, res.SizeMultiplier, 1e-9)
	assert.Len(t, res.Alternatives, 2)
}
