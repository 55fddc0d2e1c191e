package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"btc/usdt", "BTCUSDT"},
		{"BTC-USDT", "BTCUSDT"},
		{"BTCUSDT:USDT", "BTCUSDT"},
		{" ethusdt ", "ETHUSDT"},
		{"SOL/USDT:USDT", "SOLUSDT"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Canonical(tc.in), "input %q", tc.in)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "BTCUSDT#1h", Key("btc/usdt", "1h"))
	assert.Equal(t, "ETHUSDT#4h", Key("ETH-USDT", " 4h "))
	assert.Equal(t, Key("BTCUSDT", "1h"), Key("btc-usdt", "1h"))
}
