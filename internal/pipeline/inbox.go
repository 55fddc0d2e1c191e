package pipeline

import (
	"fusor/internal/signal"
	"fusor/internal/telemetry"
)

// inbox is the bounded per-pair mailbox. Offer never blocks the submitting
// goroutine: when the buffer is full the signal is dropped and counted.
type inbox struct {
	symbol    string
	timeframe string
	ch        chan signal.Signal
}

func newInbox(symbol, timeframe string, capacity int) *inbox {
	if capacity <= 0 {
		capacity = 64
	}
	return &inbox{
		symbol:    symbol,
		timeframe: timeframe,
		ch:        make(chan signal.Signal, capacity),
	}
}

func (b *inbox) Offer(sig signal.Signal) bool {
	select {
	case b.ch <- sig:
		telemetry.SetInboxDepth(b.symbol, b.timeframe, len(b.ch))
		return true
	default:
		telemetry.RecordDroppedSignal(b.symbol, "inbox_full")
		return false
	}
}

// drain moves everything currently buffered into dst without blocking.
func (b *inbox) drain(dst []signal.Signal) []signal.Signal {
	for {
		select {
		case sig := <-b.ch:
			dst = append(dst, sig)
		default:
			telemetry.SetInboxDepth(b.symbol, b.timeframe, len(b.ch))
			return dst
		}
	}
}
