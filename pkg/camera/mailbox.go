package camera

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mailbox is a single-slot frame inbox with overwrite semantics.
//
// Publish never blocks: a newer frame replaces an unconsumed older one and
// the drop is counted. Next blocks until a frame is available, the context
// is done, or the mailbox is closed. Single consumer.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame // nil = consumed
	closed bool

	seq   atomic.Uint64
	drops atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores f, replacing any unconsumed frame. The frame's Seq is
// assigned here. Publishing to a closed mailbox is a no-op.
func (m *Mailbox) Publish(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.frame != nil {
		m.drops.Add(1)
	}
	f.Seq = m.seq.Add(1)
	m.frame = &f
	m.cond.Signal()
}

// Next returns the newest frame. ok is false once the mailbox is closed
// or ctx is done.
func (m *Mailbox) Next(ctx context.Context) (Frame, bool) {
	// Wake the waiter when ctx ends; sync.Cond has no context support.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}
	if m.closed || ctx.Err() != nil {
		return Frame{}, false
	}

	f := *m.frame
	m.frame = nil
	return f, true
}

// Close wakes the consumer and rejects further frames. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Published returns the number of frames accepted.
func (m *Mailbox) Published() uint64 { return m.seq.Load() }

// Drops returns the number of frames overwritten before being consumed.
func (m *Mailbox) Drops() uint64 { return m.drops.Load() }
