// Package conflict detects contradictions inside a signal set and resolves
// them down to a surviving camp or a conservative fallback.
package conflict

import (
	"fusor/internal/signal"
)

// Level buckets the aggregated severity score.
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

func levelFromScore(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	case score >= 0.2:
		return LevelLow
	default:
		return LevelNone
	}
}

// atLeastMedium reports whether the level should trigger the resolver.
func (l Level) atLeastMedium() bool {
	switch l {
	case LevelMedium, LevelHigh, LevelCritical:
		return true
	}
	return false
}

// Factor is one triggered analyzer's contribution.
type Factor struct {
	Analyzer string  `json:"analyzer"`
	Severity float64 `json:"severity"`
	Detail   string  `json:"detail"`
}

// Report is the detector output for one cycle. Consumed immediately by the
// resolver; not persisted beyond the cycle.
type Report struct {
	Score      float64  `json:"severity_score"`
	Level      Level    `json:"severity_level"`
	Factors    []Factor `json:"contributing_factors,omitempty"`
	RootCauses []string `json:"root_causes,omitempty"`
}

// State tracks the resolver's progress for one conflict.
type State string

const (
	StateNotTriggered State = "not_triggered"
	StateResolving    State = "resolving"
	StateResolved     State = "resolved"
	StateEscalated    State = "escalated"
)

// Alternative records one side of an unresolved (or resolved-away)
// disagreement so the final decision can carry both scenarios.
type Alternative struct {
	Direction  signal.Direction `json:"direction"`
	Confidence float64          `json:"confidence"`
	Agents     []string         `json:"agents"`
	Rationale  string           `json:"rationale,omitempty"`
}

// Resolution is the resolver outcome. SizeMultiplier is 1 unless the
// conservative fallback fired; Survivors lists the agents whose signals
// should be re-fused when a camp won outright.
type Resolution struct {
	State          State         `json:"state"`
	Strategy       string        `json:"strategy,omitempty"`
	Survivors      []string      `json:"survivors,omitempty"`
	SizeMultiplier float64       `json:"size_multiplier"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
	Rationale      string        `json:"rationale,omitempty"`
}
