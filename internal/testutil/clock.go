// Package testutil holds deterministic stand-ins for the recorder's clock
// and run token generator, used by the harness and by tests.
package testutil

import "sync"

// DeterministicClock is a resettable logical clock for scenario runs.
//
// recorder.Clock only moves forward. DeterministicClock can be rewound with
// Reset so the same scenario replays with identical seq values, which keeps
// run IDs stable in golden snapshots. It satisfies recorder.Sequencer.
//
// Thread-safety: all methods lock mu.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock at 0. The first Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last seq handed out, or 0.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
