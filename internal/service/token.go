package service

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"winsvc/internal/logger"
)

// ErrTokenConsumed is returned by an InitToken after Complete.
var ErrTokenConsumed = errors.New("initialization token already completed")

// InitToken lets the task of one started run report slow startup progress
// and, through Complete, move the service to Running. A token that is
// never completed leaves the service start-pending until the host gives up.
type InitToken struct {
	reporter *Reporter
	clock    clock.Clock

	mu        sync.Mutex
	done      bool
	complete  bool
	heartbeat chan struct{}
	wg        sync.WaitGroup
}

func newInitToken(r *Reporter, clk clock.Clock) *InitToken {
	return &InitToken{reporter: r, clock: clk}
}

// StillStarting re-asserts start-pending with a fresh checkpoint. Call it
// well within the previous wait hint while initialization is slow.
func (t *InitToken) StillStarting(hint time.Duration) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done {
		return ErrTokenConsumed
	}
	return t.reporter.Starting(hint)
}

// Complete reports Running and consumes the token. An active heartbeat is
// stopped first.
func (t *InitToken) Complete() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTokenConsumed
	}
	t.done = true
	t.complete = true
	t.stopHeartbeatLocked()
	t.mu.Unlock()

	t.wg.Wait()
	return t.reporter.Running()
}

func (t *InitToken) completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.complete
}

// Heartbeat calls StillStarting(hint) every interval until the returned
// stop function is called or the token completes. Starting a heartbeat
// replaces any previous one.
func (t *InitToken) Heartbeat(interval, hint time.Duration) (stop func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return func() {}
	}
	t.stopHeartbeatLocked()

	quit := make(chan struct{})
	t.heartbeat = quit
	ticker := t.clock.Ticker(interval)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer ticker.Stop()

		log := logger.WithComponent("init-token")
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if err := t.StillStarting(hint); err != nil {
					if !errors.Is(err, ErrTokenConsumed) {
						log.Error().Err(err).Msg("Startup heartbeat failed")
					}
					return
				}
			}
		}
	}()

	return func() {
		t.mu.Lock()
		if t.heartbeat == quit {
			t.stopHeartbeatLocked()
		}
		t.mu.Unlock()
		t.wg.Wait()
	}
}

// expire consumes the token without reporting. The dispatcher calls it when
// the task returns so a forgotten heartbeat cannot outlive its run.
func (t *InitToken) expire() {
	t.mu.Lock()
	t.done = true
	t.stopHeartbeatLocked()
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *InitToken) stopHeartbeatLocked() {
	if t.heartbeat != nil {
		close(t.heartbeat)
		t.heartbeat = nil
	}
}
