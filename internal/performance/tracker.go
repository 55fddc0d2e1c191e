// Package performance publishes read-only snapshots of per-agent track
// records. A single learning-side writer folds outcomes in and publishes new
// versions; decision cycles read whatever snapshot is current and never
// block on the writer.
package performance

import (
	"sync/atomic"
	"time"
)

// AgentStats is one agent's accumulated track record.
type AgentStats struct {
	Decided        int     `json:"decided"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"`
	AvgReturn      float64 `json:"avg_return"`
	EnsembleWeight float64 `json:"ensemble_weight"`
}

// Snapshot is an immutable, versioned view of all agent stats.
type Snapshot struct {
	Version int64
	TakenAt time.Time
	Agents  map[string]AgentStats
}

// WinRate returns the agent's historical win rate and whether any history
// exists for it.
func (s Snapshot) WinRate(agentID string) (float64, bool) {
	stats, ok := s.Agents[agentID]
	if !ok || stats.Decided == 0 {
		return 0, false
	}
	return stats.WinRate, true
}

// BaseWeight derives a fusion weight from the win rate: 1.0 for unknown
// agents, scaled within [0.5, 1.5] for known ones.
func (s Snapshot) BaseWeight(agentID string) float64 {
	rate, ok := s.WinRate(agentID)
	if !ok {
		return 1
	}
	return 0.5 + rate
}

// EnsembleWeight returns the learned ensemble weight, defaulting to 1.
func (s Snapshot) EnsembleWeight(agentID string) float64 {
	stats, ok := s.Agents[agentID]
	if !ok || stats.EnsembleWeight <= 0 {
		return 1
	}
	return stats.EnsembleWeight
}

// Tracker holds the current snapshot pointer. Reads are lock-free.
type Tracker struct {
	current atomic.Pointer[Snapshot]
}

func NewTracker() *Tracker {
	t := &Tracker{}
	empty := Snapshot{Version: 0, TakenAt: time.Now().UTC(), Agents: map[string]AgentStats{}}
	t.current.Store(&empty)
	return t
}

// Current returns the latest published snapshot. The returned value must be
// treated as read-only; publishers never mutate a published snapshot.
func (t *Tracker) Current() Snapshot {
	return *t.current.Load()
}

// Publish atomically swaps in a new snapshot, stamping version and time.
func (t *Tracker) Publish(agents map[string]AgentStats) Snapshot {
	prev := t.current.Load()
	copied := make(map[string]AgentStats, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	next := Snapshot{
		Version: prev.Version + 1,
		TakenAt: time.Now().UTC(),
		Agents:  copied,
	}
	t.current.Store(&next)
	return next
}
