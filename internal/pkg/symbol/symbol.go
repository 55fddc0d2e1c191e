// Package symbol canonicalizes trading pair names so every component keys
// its state the same way regardless of how the submitting agent spells the
// pair.
package symbol

import "strings"

// Canonical folds "btc/usdt", "BTC-USDT" and "BTCUSDT:USDT" onto "BTCUSDT".
func Canonical(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// Key builds the routing key for one (symbol, timeframe) stream.
func Key(sym, timeframe string) string {
	return Canonical(sym) + "#" + strings.TrimSpace(timeframe)
}
