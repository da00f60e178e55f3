package service

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is a level-triggered boolean broadcast to any number of
// receivers. Every change bumps a version and closes the channel handed
// out to waiters, so a receiver that last looked at an older version never
// misses the wakeup.
type Signal struct {
	mu      sync.Mutex
	value   bool
	version uint64
	changed chan struct{}
}

// NewSignal returns a signal holding v.
func NewSignal(v bool) *Signal {
	return &Signal{
		value:   v,
		changed: make(chan struct{}),
	}
}

// Set stores v. Setting the current value again is a no-op.
func (s *Signal) Set(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.value == v {
		return
	}
	s.value = v
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Load returns the current value.
func (s *Signal) Load() bool {
	v, _ := s.snapshot()
	return v
}

func (s *Signal) snapshot() (bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.version
}

// since returns a channel that is closed once the version moves past seen.
func (s *Signal) since(seen uint64) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != seen {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.changed
}

// Wait blocks until the signal holds want or ctx is done.
func (s *Signal) Wait(ctx context.Context, want bool) error {
	for {
		v, version := s.snapshot()
		if v == want {
			return nil
		}
		select {
		case <-s.since(version):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe returns a read-only view positioned at the current version.
func (s *Signal) Subscribe() *Receiver {
	_, version := s.snapshot()
	r := &Receiver{sig: s}
	r.seen.Store(version)
	return r
}

// Receiver is a read-only view of a Signal that remembers which version it
// last observed.
type Receiver struct {
	sig  *Signal
	seen atomic.Uint64
}

// Load returns the current value and marks it as seen.
func (r *Receiver) Load() bool {
	v, version := r.sig.snapshot()
	r.seen.Store(version)
	return v
}

// Peek returns the current value without marking it as seen.
func (r *Receiver) Peek() bool {
	return r.sig.Load()
}

// Changed returns a channel closed once the signal changed after the last
// Load. It is already closed if a change happened in between.
func (r *Receiver) Changed() <-chan struct{} {
	return r.sig.since(r.seen.Load())
}

// Wait blocks until the signal holds want or ctx is done.
func (r *Receiver) Wait(ctx context.Context, want bool) error {
	for r.Load() != want {
		select {
		case <-r.Changed():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Context returns a context that is cancelled as soon as the signal
// is false.
func (r *Receiver) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		_ = r.sig.Wait(ctx, false)
	}()
	return ctx, cancel
}
