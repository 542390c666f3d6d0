package harness

import "sync"

// barrier is a one-shot rendezvous for a fixed number of parties. It
// releases exactly once, when the last party arrives, and is never reused.
// The orchestrator counts as one party so it learns "all setup complete"
// without polling.
type barrier struct {
	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newBarrier(parties int) *barrier {
	b := &barrier{
		pending: parties,
		release: make(chan struct{}),
	}
	if parties <= 0 {
		close(b.release)
	}
	return b
}

// arrive marks one party present. The arrival that brings the pending
// count to zero releases every waiter. Arrivals past the party count are
// ignored rather than panicking; the driver count is fixed at
// construction so this does not occur in practice.
func (b *barrier) arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == 0 {
		return
	}
	b.pending--
	if b.pending == 0 {
		close(b.release)
	}
}

// wait arrives and blocks until the barrier releases.
func (b *barrier) wait() {
	b.arrive()
	<-b.release
}

// released returns a channel that is closed once all parties have arrived.
func (b *barrier) released() <-chan struct{} {
	return b.release
}
