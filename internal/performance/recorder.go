package performance

// Recorder is the learning-side, single-writer accumulator. It owns its
// working copy of the stats and publishes immutable snapshots to the
// tracker after each batch of outcomes.
type Recorder struct {
	tracker *Tracker
	working map[string]AgentStats
}

func NewRecorder(tracker *Tracker) *Recorder {
	working := map[string]AgentStats{}
	if tracker != nil {
		for k, v := range tracker.Current().Agents {
			working[k] = v
		}
	}
	return &Recorder{tracker: tracker, working: working}
}

// RecordOutcome folds one resolved trade outcome into the agent's record.
// Not safe for concurrent use; the learning process is the only writer.
func (r *Recorder) RecordOutcome(agentID string, won bool, ret float64) {
	if agentID == "" {
		return
	}
	stats := r.working[agentID]
	stats.AvgReturn = (stats.AvgReturn*float64(stats.Decided) + ret) / float64(stats.Decided+1)
	stats.Decided++
	if won {
		stats.Wins++
	}
	stats.WinRate = float64(stats.Wins) / float64(stats.Decided)
	r.working[agentID] = stats
}

// SetEnsembleWeight installs a learned model weight for an agent source.
func (r *Recorder) SetEnsembleWeight(agentID string, weight float64) {
	if agentID == "" || weight <= 0 {
		return
	}
	stats := r.working[agentID]
	stats.EnsembleWeight = weight
	r.working[agentID] = stats
}

// Publish pushes the working stats out as a new snapshot version.
func (r *Recorder) Publish() Snapshot {
	if r.tracker == nil {
		return Snapshot{}
	}
	return r.tracker.Publish(r.working)
}
