package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fusor/internal/market"
	"fusor/internal/signal"
)

// WeightsFn supplies the current analyzer weight table; wired to the
// weights registry so reloads take effect without restarting.
type WeightsFn func() map[string]float64

const (
	analyzerDirection = "direction"
	analyzerTiming    = "timing"
	analyzerRisk      = "risk_approach"
	analyzerIndicator = "indicator"
)

// Detector runs the independent conflict analyzers over the raw
// (pre-fusion) signal set and aggregates their severities.
type Detector struct {
	weightsFn WeightsFn
	staleness time.Duration
}

func NewDetector(weightsFn WeightsFn, staleness time.Duration) *Detector {
	if staleness <= 0 {
		staleness = 90 * time.Second
	}
	return &Detector{weightsFn: weightsFn, staleness: staleness}
}

type finding struct {
	triggered bool
	severity  float64
	detail    string
}

// Detect aggregates triggered analyzer severities as a weighted average
// over the triggered analyzers' weights, then maps the score to a level.
// Analyzers that found nothing carry no weight in the average, so a single
// severe disagreement is not diluted by the quiet ones.
func (d *Detector) Detect(signals []signal.Signal, mctx market.Context) Report {
	findings := map[string]finding{
		analyzerDirection: analyzeDirection(signals),
		analyzerTiming:    d.analyzeTiming(signals),
		analyzerRisk:      analyzeRiskApproach(signals),
		analyzerIndicator: analyzeIndicators(signals),
	}
	weights := d.analyzerWeights()

	totalWeight := 0.0
	weightedSeverity := 0.0
	var factors []Factor
	var rootCauses []string
	names := make([]string, 0, len(findings))
	for name := range findings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := findings[name]
		if !f.triggered {
			continue
		}
		w := weights[name]
		totalWeight += w
		weightedSeverity += f.severity * w
		factors = append(factors, Factor{Analyzer: name, Severity: f.severity, Detail: f.detail})
		rootCauses = append(rootCauses, fmt.Sprintf("%s: %s", name, f.detail))
	}

	score := 0.0
	if totalWeight > 0 {
		score = weightedSeverity / totalWeight
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Report{
		Score:      score,
		Level:      levelFromScore(score),
		Factors:    factors,
		RootCauses: rootCauses,
	}
}

func (d *Detector) analyzerWeights() map[string]float64 {
	var table map[string]float64
	if d.weightsFn != nil {
		table = d.weightsFn()
	}
	out := map[string]float64{
		analyzerDirection: 0.4,
		analyzerTiming:    0.2,
		analyzerRisk:      0.2,
		analyzerIndicator: 0.2,
	}
	for name, w := range table {
		if w >= 0 {
			out[name] = w
		}
	}
	return out
}

// analyzeDirection flags opposing long/short camps. Severity is how
// balanced the opposition is: evenly matched camps score 1.
func analyzeDirection(signals []signal.Signal) finding {
	longConf, shortConf := 0.0, 0.0
	for _, sig := range signals {
		switch sig.Direction {
		case signal.DirectionLong:
			longConf += sig.Confidence
		case signal.DirectionShort:
			shortConf += sig.Confidence
		}
	}
	if longConf <= 0 || shortConf <= 0 {
		return finding{}
	}
	minSide, sum := longConf, longConf+shortConf
	if shortConf < minSide {
		minSide = shortConf
	}
	severity := 2 * minSide / sum
	return finding{
		triggered: true,
		severity:  severity,
		detail:    fmt.Sprintf("long weight %.2f vs short weight %.2f", longConf, shortConf),
	}
}

// analyzeTiming flags signal sets whose submissions are spread across a
// large share of the staleness window: the agents were not looking at the
// same market.
func (d *Detector) analyzeTiming(signals []signal.Signal) finding {
	var earliest, latest time.Time
	counted := 0
	for _, sig := range signals {
		if sig.SubmittedAt.IsZero() {
			continue
		}
		if counted == 0 || sig.SubmittedAt.Before(earliest) {
			earliest = sig.SubmittedAt
		}
		if counted == 0 || sig.SubmittedAt.After(latest) {
			latest = sig.SubmittedAt
		}
		counted++
	}
	if counted < 2 {
		return finding{}
	}
	spread := latest.Sub(earliest)
	ratio := float64(spread) / float64(d.staleness)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0.25 {
		return finding{}
	}
	return finding{
		triggered: true,
		severity:  ratio,
		detail:    fmt.Sprintf("submissions spread across %s", spread.Truncate(time.Second)),
	}
}

// analyzeRiskApproach flags incompatible risk postures: explicit
// aggressive-vs-conservative clashes, or stop widths differing by more
// than 3x between agents.
func analyzeRiskApproach(signals []signal.Signal) finding {
	approaches := map[string]bool{}
	minStop, maxStop := 0.0, 0.0
	for _, sig := range signals {
		if sig.Direction == signal.DirectionHold {
			continue
		}
		if a := sig.RiskParams.Approach; a != "" {
			approaches[a] = true
		}
		if stop := sig.RiskParams.StopLossPct; stop > 0 {
			if minStop == 0 || stop < minStop {
				minStop = stop
			}
			if stop > maxStop {
				maxStop = stop
			}
		}
	}
	severity := 0.0
	details := make([]string, 0, 2)
	if approaches["aggressive"] && approaches["conservative"] {
		severity = 0.7
		details = append(details, "aggressive and conservative postures in the same set")
	}
	if minStop > 0 && maxStop/minStop > 3 {
		stopSeverity := 0.4 + 0.1*(maxStop/minStop-3)
		if stopSeverity > 1 {
			stopSeverity = 1
		}
		if stopSeverity > severity {
			severity = stopSeverity
		}
		details = append(details, fmt.Sprintf("stop widths differ %.1fx", maxStop/minStop))
	}
	if severity == 0 {
		return finding{}
	}
	return finding{triggered: true, severity: severity, detail: strings.Join(details, "; ")}
}

// analyzeIndicators flags the same indicator being read in opposite
// directions by different agents.
func analyzeIndicators(signals []signal.Signal) finding {
	longInd := map[string]bool{}
	shortInd := map[string]bool{}
	total := map[string]bool{}
	for _, sig := range signals {
		for _, ind := range sig.Indicators {
			total[ind] = true
			switch sig.Direction {
			case signal.DirectionLong:
				longInd[ind] = true
			case signal.DirectionShort:
				shortInd[ind] = true
			}
		}
	}
	if len(total) == 0 {
		return finding{}
	}
	contested := make([]string, 0)
	for ind := range longInd {
		if shortInd[ind] {
			contested = append(contested, ind)
		}
	}
	if len(contested) == 0 {
		return finding{}
	}
	sort.Strings(contested)
	severity := float64(len(contested)) / float64(len(total))
	return finding{
		triggered: true,
		severity:  severity,
		detail:    fmt.Sprintf("contested indicators: %s", strings.Join(contested, ", ")),
	}
}
