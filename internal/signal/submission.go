package signal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fusor/internal/pkg/symbol"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// submissionSchema gates inbound StrategySubmission payloads before any
// field reaches the normalizer.
const submissionSchema = `{
  "type": "object",
  "required": ["agent_id", "symbol", "timeframe", "direction", "confidence"],
  "properties": {
    "agent_id": {"type": "string", "minLength": 1},
    "symbol": {"type": "string", "minLength": 1},
    "timeframe": {"type": "string", "minLength": 1},
    "direction": {"type": "string", "minLength": 1},
    "confidence": {"type": ["number", "string"]},
    "reasoning": {"type": "string"},
    "indicators": {"type": "array", "items": {"type": "string"}},
    "risk_parameters": {
      "type": "object",
      "properties": {
        "stop_loss_pct": {"type": ["number", "string"]},
        "take_profit_pct": {"type": ["number", "string"]},
        "max_position_pct": {"type": ["number", "string"]},
        "approach": {"type": "string"}
      }
    },
    "timestamp": {"type": ["string", "number"]}
  }
}`

var compiledSubmissionSchema = jsonschema.MustCompileString("strategy_submission.json", submissionSchema)

// ParseSubmission validates a raw StrategySubmission message and converts it
// into a Signal. Numeric fields tolerate string encodings; a missing
// timestamp defaults to now.
func ParseSubmission(raw []byte, now time.Time) (Signal, error) {
	if !gjson.ValidBytes(raw) {
		return Signal{}, fmt.Errorf("%w: payload is not valid json", ErrInvalidSignal)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if err := compiledSubmissionSchema.Validate(doc); err != nil {
		return Signal{}, fmt.Errorf("%w: schema check failed: %v", ErrInvalidSignal, err)
	}

	parsed := gjson.ParseBytes(raw)
	direction := NormalizeDirection(parsed.Get("direction").String())
	if !direction.Valid() {
		return Signal{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidSignal, parsed.Get("direction").String())
	}
	sig := Signal{
		AgentID:    strings.TrimSpace(parsed.Get("agent_id").String()),
		Symbol:     symbol.Canonical(parsed.Get("symbol").String()),
		Timeframe:  strings.TrimSpace(parsed.Get("timeframe").String()),
		Direction:  direction,
		Confidence: parsed.Get("confidence").Float(),
		Reasoning:  strings.TrimSpace(parsed.Get("reasoning").String()),
		RiskParams: RiskParams{
			StopLossPct:    parsed.Get("risk_parameters.stop_loss_pct").Float(),
			TakeProfitPct:  parsed.Get("risk_parameters.take_profit_pct").Float(),
			MaxPositionPct: parsed.Get("risk_parameters.max_position_pct").Float(),
			Approach:       strings.ToLower(strings.TrimSpace(parsed.Get("risk_parameters.approach").String())),
		},
	}
	for _, item := range parsed.Get("indicators").Array() {
		name := strings.ToLower(strings.TrimSpace(item.String()))
		if name != "" {
			sig.Indicators = append(sig.Indicators, name)
		}
	}
	sig.SubmittedAt = parseTimestamp(parsed.Get("timestamp"), now)
	return sig, nil
}

func parseTimestamp(field gjson.Result, now time.Time) time.Time {
	if !field.Exists() {
		return now.UTC()
	}
	if field.Type == gjson.Number {
		ms := field.Int()
		// Accept either unix seconds or milliseconds.
		if ms > 1e12 {
			return time.UnixMilli(ms).UTC()
		}
		return time.Unix(ms, 0).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, field.String()); err == nil {
		return ts.UTC()
	}
	return now.UTC()
}
