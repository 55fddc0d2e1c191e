package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSubmission(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := []byte(`{
		"agent_id": "trend-follower",
		"symbol": "btc/usdt",
		"timeframe": "1h",
		"direction": "BUY",
		"confidence": 0.82,
		"reasoning": "ema stack aligned",
		"indicators": ["EMA", "macd"],
		"risk_parameters": {
			"stop_loss_pct": 0.02,
			"take_profit_pct": 0.05,
			"approach": "Moderate"
		},
		"timestamp": "2025-06-01T11:59:30Z"
	}`)

	sig, err := ParseSubmission(raw, now)
	assert.NoError(t, err)
	assert.Equal(t, "trend-follower", sig.AgentID)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, DirectionLong, sig.Direction)
	assert.InDelta(t, 0.82, sig.Confidence, 1e-9)
	assert.Equal(t, []string{"ema", "macd"}, sig.Indicators)
	assert.Equal(t, "moderate", sig.RiskParams.Approach)
	assert.InDelta(t, 0.02, sig.RiskParams.StopLossPct, 1e-9)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 59, 30, 0, time.UTC), sig.SubmittedAt)
}

func TestParseSubmissionUnixMillisTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := []byte(`{
		"agent_id": "a1",
		"symbol": "ETHUSDT",
		"timeframe": "4h",
		"direction": "short",
		"confidence": 0.5,
		"timestamp": 1748779170000
	}`)

	sig, err := ParseSubmission(raw, now)
	assert.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1748779170000).UTC(), sig.SubmittedAt)
}

func TestParseSubmissionMissingTimestampDefaultsToNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := []byte(`{"agent_id":"a1","symbol":"BTCUSDT","timeframe":"1h","direction":"hold","confidence":0.4}`)

	sig, err := ParseSubmission(raw, now)
	assert.NoError(t, err)
	assert.Equal(t, now, sig.SubmittedAt)
}

func TestParseSubmissionRejectsBadPayloads(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"agent_id":`},
		{"missing direction", `{"agent_id":"a1","symbol":"BTCUSDT","timeframe":"1h","confidence":0.5}`},
		{"missing agent", `{"symbol":"BTCUSDT","timeframe":"1h","direction":"long","confidence":0.5}`},
		{"unknown direction", `{"agent_id":"a1","symbol":"BTCUSDT","timeframe":"1h","direction":"sideways","confidence":0.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSubmission([]byte(tc.raw), now)
			assert.ErrorIs(t, err, ErrInvalidSignal)
		})
	}
}
