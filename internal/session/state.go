package session

import "sync/atomic"

// stopLatch is a single-writer/multi-reader flag, equivalent to a
// watch-style channel: Stop() flips it, Stopped() is polled at sentence
// and chunk boundaries. It is reset at the start of each new (non-append)
// synthesize request, and by a synthesize_append that has text ready to
// synthesize.
type stopLatch struct {
	flag atomic.Bool
}

func (s *stopLatch) Stop()         { s.flag.Store(true) }
func (s *stopLatch) Reset()        { s.flag.Store(false) }
func (s *stopLatch) Stopped() bool { return s.flag.Load() }

// state is the session's per-connection mutable state. Apart from the stop
// latch, which readLoop flips atomically, it is only ever touched by the
// session's orchestrating goroutine, so it needs no locking of its own —
// synthesis helpers run in worker goroutines but report results back over
// a channel instead of touching state directly.
type state struct {
	authenticated bool
	username      string

	counter uint32
	pending string

	latch stopLatch
}

// nextIndex returns the next sentence index and advances the counter,
// satisfying the monotonic/contiguous-counter invariant across
// synthesize_append calls.
func (s *state) nextIndex() uint32 {
	idx := s.counter
	s.counter++
	return idx
}

// resetForFullSynthesize implements the counter-reset invariant: a full
// (non-append) synthesize message resets the counter to 0 and clears the
// pending buffer.
func (s *state) resetForFullSynthesize() {
	s.counter = 0
	s.pending = ""
	s.latch.Reset()
}
