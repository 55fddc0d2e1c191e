package performance

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotDefaults(t *testing.T) {
	tracker := NewTracker()
	snap := tracker.Current()

	_, known := snap.WinRate("unknown")
	assert.False(t, known)
	assert.InDelta(t, 1.0, snap.BaseWeight("unknown"), 1e-9)
	assert.InDelta(t, 1.0, snap.EnsembleWeight("unknown"), 1e-9)
}

func TestPublishBumpsVersion(t *testing.T) {
	tracker := NewTracker()
	v0 := tracker.Current().Version

	snap := tracker.Publish(map[string]AgentStats{
		"a1": {Decided: 10, Wins: 7, WinRate: 0.7},
	})

	assert.Greater(t, snap.Version, v0)
	rate, known := snap.WinRate("a1")
	assert.True(t, known)
	assert.InDelta(t, 0.7, rate, 1e-9)
	assert.InDelta(t, 1.2, snap.BaseWeight("a1"), 1e-9)
}

func TestRecorderAccumulatesOutcomes(t *testing.T) {
	tracker := NewTracker()
	rec := NewRecorder(tracker)

	rec.RecordOutcome("a1", true, 0.04)
	rec.RecordOutcome("a1", true, 0.02)
	rec.RecordOutcome("a1", false, -0.03)
	rec.SetEnsembleWeight("a1", 1.8)
	snap := rec.Publish()

	rate, known := snap.WinRate("a1")
	assert.True(t, known)
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)
	assert.InDelta(t, 0.01, snap.Agents["a1"].AvgReturn, 1e-9)
	assert.InDelta(t, 1.8, snap.EnsembleWeight("a1"), 1e-9)
}

func TestTrackerConcurrentReaders(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tracker.Current().BaseWeight("a1")
			}
		}()
	}
	for j := 0; j < 50; j++ {
		tracker.Publish(map[string]AgentStats{"a1": {Decided: j + 1, Wins: j, WinRate: 1}})
	}
	wg.Wait()

	rate, known := tracker.Current().WinRate("a1")
	assert.True(t, known)
	assert.InDelta(t, 1.0, rate, 1e-9)
}
