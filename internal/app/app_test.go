package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fusor/internal/config"
	"fusor/internal/decision"
	"fusor/internal/pipeline"
	"fusor/internal/signal"

	"github.com/stretchr/testify/assert"
)

type memoryEmitter struct {
	mu       sync.Mutex
	captured []decision.TradingDecision
}

func (e *memoryEmitter) Emit(_ context.Context, d decision.TradingDecision) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captured = append(e.captured, d)
	return nil
}

func (e *memoryEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.captured)
}

func (e *memoryEmitter) first() decision.TradingDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captured[0]
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  env: test
  http_addr: "127.0.0.1:0"
  weights_path: ` + filepath.Join(dir, "absent-weights.yaml") + `
store:
  decision_log_path: ` + filepath.Join(dir, "decisions.db") + `
pipeline:
  quorum: 2
  cycle_timeout_ms: 5000
  pairs:
    - symbol: BTCUSDT
      timeframe: 1h
      expected_agents: [a1, a2]
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := config.Load(path)
	assert.NoError(t, err)
	return cfg
}

func agentSignal(agent string) signal.Signal {
	return signal.Signal{
		AgentID:     agent,
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		Direction:   signal.DirectionLong,
		Confidence:  0.8,
		SubmittedAt: time.Now().UTC(),
	}
}

func TestNewAppBuildsFromConfig(t *testing.T) {
	a, err := NewApp(loadTestConfig(t))
	assert.NoError(t, err)
	assert.NotNil(t, a.Coordinator())
	a.closeStore()
}

func TestBuildWithEmitterOverride(t *testing.T) {
	em := &memoryEmitter{}
	a, err := NewAppBuilder(loadTestConfig(t), WithEmitter(em)).Build(context.Background())
	assert.NoError(t, err)
	defer a.closeStore()

	coord := a.Coordinator()
	assert.NotNil(t, coord)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = coord.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	assert.NoError(t, coord.Submit(agentSignal("a1")))
	assert.NoError(t, coord.Submit(agentSignal("a2")))
	assert.ErrorIs(t, coord.Submit(signal.Signal{
		AgentID: "a1", Symbol: "DOGEUSDT", Timeframe: "1h",
		Direction: signal.DirectionLong, Confidence: 0.5, SubmittedAt: time.Now().UTC(),
	}), pipeline.ErrUnknownPair)

	deadline := time.After(3 * time.Second)
	for em.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no decision reached the override emitter")
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Equal(t, "BTCUSDT", em.first().Symbol)
}
