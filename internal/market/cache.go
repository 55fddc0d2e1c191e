package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fusor/internal/pkg/symbol"
)

// Cache holds the latest fed context per pair. External collaborators push
// candles and depth; readers get a derived snapshot. Safe for concurrent
// use.
type Cache struct {
	mu       sync.RWMutex
	contexts map[string]Context
}

func NewCache() *Cache {
	return &Cache{contexts: make(map[string]Context)}
}

// Update replaces the stored context for the pair and derives regime,
// volatility and structure levels from the pushed candles.
func (c *Cache) Update(sym, timeframe string, candles []Candle, depth *DepthSnapshot, lastPrice float64) Context {
	mctx := Context{
		Symbol:    symbol.Canonical(sym),
		Timeframe: strings.TrimSpace(timeframe),
		LastPrice: lastPrice,
		Candles:   append([]Candle(nil), candles...),
		Depth:     depth,
		UpdatedAt: time.Now().UTC(),
	}
	mctx = mctx.Derive()

	c.mu.Lock()
	c.contexts[symbol.Key(mctx.Symbol, mctx.Timeframe)] = mctx
	c.mu.Unlock()
	return mctx
}

// Context returns the latest snapshot for the pair. The error signals a
// pair that has never been fed; callers degrade rather than fail.
func (c *Cache) Context(ctx context.Context, sym, timeframe string) (Context, error) {
	if err := ctx.Err(); err != nil {
		return Context{}, err
	}
	c.mu.RLock()
	mctx, ok := c.contexts[symbol.Key(sym, timeframe)]
	c.mu.RUnlock()
	if !ok {
		return Context{}, fmt.Errorf("no market data for %s %s", sym, timeframe)
	}
	return mctx, nil
}
