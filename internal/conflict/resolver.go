package conflict

import (
	"fmt"
	"sort"
	"strings"

	"fusor/internal/config"
	"fusor/internal/market"
	"fusor/internal/performance"
	"fusor/internal/signal"
)

const (
	strategyConfidence  = "confidence"
	strategyRegime      = "regime"
	strategyPerformance = "performance"
	strategyFallback    = "conservative_fallback"

	regimeFitGap = 0.15
	winRateGap   = 0.05
)

// Resolver picks a surviving camp when the detector reports a conflict at
// medium severity or above. Strategies are tried in order: confidence gap,
// regime fit, historical performance; if none produces a definitive winner
// the conservative fallback fires.
type Resolver struct {
	cfg config.ConflictConfig
}

func NewResolver(cfg config.ConflictConfig) *Resolver {
	if cfg.ConfidenceGap <= 0 {
		cfg.ConfidenceGap = 0.15
	}
	if cfg.FallbackMultiplier <= 0 || cfg.FallbackMultiplier > 1 {
		cfg.FallbackMultiplier = 0.3
	}
	return &Resolver{cfg: cfg}
}

type camp struct {
	direction signal.Direction
	agents    []string
	signals   []signal.Signal
	// meanConf is the camp's average freshness-decayed confidence.
	meanConf float64
}

// Resolve walks the strategy ladder. Critical severity always forces the
// conservative fallback regardless of any confidence gap.
func (r *Resolver) Resolve(report Report, signals []signal.Signal, normalized []signal.Normalized, mctx market.Context, perf performance.Snapshot) Resolution {
	if !report.Level.atLeastMedium() {
		return Resolution{State: StateNotTriggered, SizeMultiplier: 1, Survivors: allSources(signals)}
	}

	long, short := buildCamps(signals, normalized)
	if long == nil || short == nil {
		// Conflict without opposing camps (timing/risk only): keep the set,
		// note the resolution was consulted.
		return Resolution{
			State:          StateResolved,
			Strategy:       strategyConfidence,
			SizeMultiplier: 1,
			Survivors:      allSources(signals),
			Rationale:      "no opposing directional camps; full set retained",
		}
	}

	if report.Level == LevelCritical {
		return r.fallback(long, short, "severity critical; conservative fallback forced")
	}

	if winner, loser, ok := r.byConfidence(long, short); ok {
		return r.resolved(strategyConfidence, winner, loser,
			fmt.Sprintf("confidence gap %.2f >= %.2f", winner.meanConf-loser.meanConf, r.cfg.ConfidenceGap))
	}
	if winner, loser, ok := byRegime(long, short, mctx.Regime); ok {
		return r.resolved(strategyRegime, winner, loser,
			fmt.Sprintf("better fit for %s regime", mctx.Regime))
	}
	if winner, loser, ok := byPerformance(long, short, perf); ok {
		return r.resolved(strategyPerformance, winner, loser, "higher historical win rate")
	}

	return r.fallback(long, short, "no strategy reached a definitive winner")
}

func (r *Resolver) resolved(strategy string, winner, loser *camp, rationale string) Resolution {
	return Resolution{
		State:          StateResolved,
		Strategy:       strategy,
		Survivors:      winner.agents,
		SizeMultiplier: 1,
		Alternatives:   []Alternative{campAlternative(loser, "overruled: "+rationale)},
		Rationale:      rationale,
	}
}

func (r *Resolver) fallback(long, short *camp, rationale string) Resolution {
	return Resolution{
		State:          StateEscalated,
		Strategy:       strategyFallback,
		Survivors:      append(append([]string{}, long.agents...), short.agents...),
		SizeMultiplier: r.cfg.FallbackMultiplier,
		Alternatives: []Alternative{
			campAlternative(long, "unresolved long scenario"),
			campAlternative(short, "unresolved short scenario"),
		},
		Rationale: rationale,
	}
}

func (r *Resolver) byConfidence(long, short *camp) (winner, loser *camp, ok bool) {
	gap := long.meanConf - short.meanConf
	if gap < 0 {
		gap = -gap
	}
	if gap < r.cfg.ConfidenceGap {
		return nil, nil, false
	}
	if long.meanConf > short.meanConf {
		return long, short, true
	}
	return short, long, true
}

func byRegime(long, short *camp, regime market.Regime) (winner, loser *camp, ok bool) {
	longFit := campRegimeFit(long, regime)
	shortFit := campRegimeFit(short, regime)
	gap := longFit - shortFit
	if gap < 0 {
		gap = -gap
	}
	if gap < regimeFitGap {
		return nil, nil, false
	}
	if longFit > shortFit {
		return long, short, true
	}
	return short, long, true
}

func byPerformance(long, short *camp, perf performance.Snapshot) (winner, loser *camp, ok bool) {
	longRate, longOK := campWinRate(long, perf)
	shortRate, shortOK := campWinRate(short, perf)
	if !longOK || !shortOK {
		return nil, nil, false
	}
	gap := longRate - shortRate
	if gap < 0 {
		gap = -gap
	}
	if gap < winRateGap {
		return nil, nil, false
	}
	if longRate > shortRate {
		return long, short, true
	}
	return short, long, true
}

func buildCamps(signals []signal.Signal, normalized []signal.Normalized) (long, short *camp) {
	confBySource := make(map[string]float64, len(normalized))
	for _, n := range normalized {
		confBySource[n.Source] = n.Confidence
	}
	build := func(dir signal.Direction) *camp {
		c := &camp{direction: dir}
		total := 0.0
		for _, sig := range signals {
			if sig.Direction != dir {
				continue
			}
			c.agents = append(c.agents, sig.AgentID)
			c.signals = append(c.signals, sig)
			if conf, ok := confBySource[sig.AgentID]; ok {
				total += conf
			} else {
				total += sig.Confidence
			}
		}
		if len(c.agents) == 0 {
			return nil
		}
		sort.Strings(c.agents)
		c.meanConf = total / float64(len(c.agents))
		return c
	}
	return build(signal.DirectionLong), build(signal.DirectionShort)
}

var trendIndicators = map[string]bool{
	"ema": true, "sma": true, "macd": true, "adx": true,
	"supertrend": true, "ichimoku": true, "donchian": true,
}

var oscillatorIndicators = map[string]bool{
	"rsi": true, "stoch": true, "stochastic": true, "cci": true,
	"bollinger": true, "bb": true, "williams_r": true, "mfi": true,
}

// campRegimeFit scores how well a camp's cited indicators and risk posture
// suit the current regime. Trend followers fit trending tape; oscillator
// readers fit ranges; conservative postures fit volatile tape.
func campRegimeFit(c *camp, regime market.Regime) float64 {
	if len(c.signals) == 0 {
		return 0
	}
	total := 0.0
	for _, sig := range c.signals {
		total += signalRegimeFit(sig, regime)
	}
	return total / float64(len(c.signals))
}

func signalRegimeFit(sig signal.Signal, regime market.Regime) float64 {
	trend, osc := 0, 0
	for _, ind := range sig.Indicators {
		ind = strings.ToLower(ind)
		if trendIndicators[ind] {
			trend++
		}
		if oscillatorIndicators[ind] {
			osc++
		}
	}
	switch regime {
	case market.RegimeTrending:
		switch {
		case trend > osc:
			return 1
		case osc > trend:
			return 0.3
		default:
			return 0.6
		}
	case market.RegimeRanging:
		switch {
		case osc > trend:
			return 1
		case trend > osc:
			return 0.3
		default:
			return 0.6
		}
	case market.RegimeVolatile:
		if sig.RiskParams.Approach == "conservative" {
			return 0.9
		}
		if sig.RiskParams.Approach == "aggressive" {
			return 0.3
		}
		return 0.6
	default:
		return 0.5
	}
}

func campWinRate(c *camp, perf performance.Snapshot) (float64, bool) {
	total := 0.0
	known := 0
	for _, agent := range c.agents {
		if rate, ok := perf.WinRate(agent); ok {
			total += rate
			known++
		}
	}
	if known == 0 {
		return 0, false
	}
	return total / float64(known), true
}

func campAlternative(c *camp, rationale string) Alternative {
	return Alternative{
		Direction:  c.direction,
		Confidence: c.meanConf,
		Agents:     c.agents,
		Rationale:  rationale,
	}
}

func allSources(signals []signal.Signal) []string {
	out := make([]string, 0, len(signals))
	for _, sig := range signals {
		out = append(out, sig.AgentID)
	}
	sort.Strings(out)
	return out
}
