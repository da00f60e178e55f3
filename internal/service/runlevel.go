package service

import (
	"sync"
	"sync/atomic"

	"winsvc/internal/logger"
)

// RunLevel is the level the control manager asked the service to be at.
type RunLevel int32

const (
	LevelStopped RunLevel = iota
	LevelPaused
	LevelStarted
)

func (l RunLevel) String() string {
	switch l {
	case LevelStopped:
		return "stopped"
	case LevelPaused:
		return "paused"
	case LevelStarted:
		return "started"
	default:
		return "unknown"
	}
}

// Coordinator holds the requested run level and the running/paused
// signals derived from it. Apply only stores values; it never blocks and
// never reports status, so it is safe to call from the host's control
// callback.
type Coordinator struct {
	mu      sync.Mutex // serializes Apply
	level   atomic.Int32
	running *Signal
	paused  *Signal
}

// NewCoordinator returns a coordinator at LevelStarted.
func NewCoordinator() *Coordinator {
	c := &Coordinator{
		running: NewSignal(true),
		paused:  NewSignal(false),
	}
	c.level.Store(int32(LevelStarted))
	return c
}

// Level returns the requested run level.
func (c *Coordinator) Level() RunLevel {
	return RunLevel(c.level.Load())
}

// Running exposes the running signal.
func (c *Coordinator) Running() *Signal { return c.running }

// Paused exposes the paused signal.
func (c *Coordinator) Paused() *Signal { return c.paused }

// Apply updates the run level for ev. It satisfies EventHandler.
func (c *Coordinator) Apply(ev Event) error {
	log := logger.WithComponent("control")
	log.Info().Str("event", ev.String()).Str("level", c.Level().String()).Msg("Service control request")

	switch ev {
	case Pause, Continue, Stop:
	case Interrogate:
		return nil
	default:
		return ErrNotImplemented
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Level() == LevelStopped {
		return nil
	}

	switch ev {
	case Pause:
		c.level.Store(int32(LevelPaused))
		c.paused.Set(true)
		c.running.Set(false)
	case Continue:
		c.level.Store(int32(LevelStarted))
		c.running.Set(true)
		c.paused.Set(false)
	case Stop:
		c.level.Store(int32(LevelStopped))
		c.running.Set(false)
		c.paused.Set(false)
	}
	return nil
}
