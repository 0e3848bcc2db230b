package engine

import "sync/atomic"

// Sequencer issues strictly monotonic sequence numbers. A single
// sequencer covers one engine's order arrivals, trades, and stream
// events, so every committed effect is totally ordered.
type Sequencer struct {
	next atomic.Uint64
}

// NewSequencer creates a sequencer whose first issued value is 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence number, 0 if none.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
