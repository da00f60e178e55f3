package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"winsvc/internal/config"
	"winsvc/internal/logger"
)

// Task is the application body run while the service is started. It
// should return soon after running turns false. A non-nil error ends the
// whole service session.
type Task[C any] func(cfg C, init *InitToken, running *Receiver) error

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	waitHint time.Duration
	clock    clock.Clock
}

// WithWaitHint sets the wait hint of the pending states the dispatcher
// reports. The default is one second.
func WithWaitHint(d time.Duration) Option {
	return func(o *options) { o.waitHint = d }
}

// WithClock replaces the clock used by initialization heartbeats.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Dispatcher is the service main loop for tasks configured by C.
type Dispatcher[C any] struct {
	name  string
	host  Host
	store config.Store
	task  Task[C]
	opts  options
}

// NewDispatcher creates a dispatcher for the service name. The task's
// configuration is loaded from store under name on every start.
func NewDispatcher[C any](name string, host Host, store config.Store, task Task[C], opts ...Option) *Dispatcher[C] {
	o := options{
		waitHint: time.Second,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher[C]{
		name:  name,
		host:  host,
		store: store,
		task:  task,
		opts:  o,
	}
}

// Serve enters the host dispatcher and runs the service main inside it.
// It blocks until the session ends and returns the error that ended it.
// A service main that fails returns at once, even while the host
// dispatcher is still waiting for a stopped report that never comes.
func (d *Dispatcher[C]) Serve() error {
	var started atomic.Bool
	errc := make(chan error, 1)
	hostc := make(chan error, 1)

	go func() {
		hostc <- d.host.Serve(d.name, func(args []string) {
			started.Store(true)
			errc <- d.Run(args)
		})
	}()

	for {
		select {
		case err := <-errc:
			if err != nil {
				return err
			}
			// Stopped was reported; the host returns shortly.
			errc = nil

		case err := <-hostc:
			if err != nil {
				return fmt.Errorf("failed to start service dispatcher: %w", err)
			}
			if !started.Load() || errc == nil {
				return nil
			}
			return <-errc
		}
	}
}

// Run is the service main. It registers the control handler and drives the
// run level until the host asks the service to stop.
func (d *Dispatcher[C]) Run(args []string) error {
	log := logger.WithComponent("dispatcher")

	coord := NewCoordinator()
	sender, err := d.host.Register(d.name, func(code uint32) uint32 {
		return HandleControl(code, coord.Apply)
	})
	if err != nil {
		return fmt.Errorf("failed to register control handler for %s: %w", d.name, err)
	}
	reporter := NewReporter(sender)

	log.Info().Str("service", d.name).Strs("args", args).Msg("Service main started")

	for {
		switch level := coord.Level(); level {
		case LevelStopped:
			if err := reporter.Stopped(); err != nil {
				return fmt.Errorf("failed to report stopped: %w", err)
			}
			log.Info().Str("service", d.name).Msg("Service stopped")
			return nil

		case LevelPaused:
			log.Debug().Msg("Entering paused state")
			if err := d.pause(coord, reporter); err != nil {
				return err
			}
			log.Debug().Msg("Exiting paused state")

		default:
			log.Debug().Msg("Entering started state")
			if err := d.start(coord, reporter); err != nil {
				return err
			}
			log.Debug().Msg("Exiting started state")
		}
	}
}

func (d *Dispatcher[C]) pause(coord *Coordinator, reporter *Reporter) error {
	if err := reporter.Pausing(d.opts.waitHint); err != nil {
		return fmt.Errorf("failed to report pause pending: %w", err)
	}
	if err := reporter.Paused(); err != nil {
		return fmt.Errorf("failed to report paused: %w", err)
	}
	return coord.Paused().Wait(context.Background(), false)
}

func (d *Dispatcher[C]) start(coord *Coordinator, reporter *Reporter) error {
	log := logger.WithComponent("dispatcher")

	if err := reporter.Starting(d.opts.waitHint); err != nil {
		return fmt.Errorf("failed to report start pending: %w", err)
	}

	cfg, err := config.Load[C](d.store, d.name)
	if err != nil {
		log.Error().Err(err).Str("service", d.name).Msg("Failed to load service configuration")
		_ = reporter.StoppedWithError(ExitConfigLoad)
		return fmt.Errorf("failed to load configuration for %s: %w", d.name, err)
	}

	watch := coord.Running().Subscribe()
	running := coord.Running().Subscribe()
	if coord.Level() != LevelStarted {
		// Paused or stopped while loading. Subscribing before this check
		// keeps a later change visible to watch.
		log.Debug().Str("level", coord.Level().String()).Msg("Run level changed during configuration load")
		return nil
	}

	token := newInitToken(reporter, d.opts.clock)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("Service task panicked")
				panic(r)
			}
		}()
		done <- d.task(cfg, token, running)
	}()

	winding := false
	for {
		select {
		case err := <-done:
			token.expire()
			if err != nil {
				log.Error().Err(err).Msg("Service task failed")
				_ = reporter.StoppedWithError(ExitTaskFailed)
				return fmt.Errorf("service task failed: %w", err)
			}
			return nil

		case <-watch.Changed():
			if err := d.track(coord, reporter, token, watch.Load(), &winding); err != nil {
				token.expire()
				return err
			}
		}
	}
}

// track reports the pending state implied by a running-signal flip while
// the task is still winding down, so the host hears about the transition
// before the task returns.
func (d *Dispatcher[C]) track(coord *Coordinator, reporter *Reporter, token *InitToken, running bool, winding *bool) error {
	switch {
	case !running && !*winding:
		*winding = true
		switch coord.Level() {
		case LevelPaused:
			if err := reporter.Pausing(d.opts.waitHint); err != nil {
				return fmt.Errorf("failed to report pause pending: %w", err)
			}
		case LevelStopped:
			if err := reporter.Stopping(d.opts.waitHint); err != nil {
				return fmt.Errorf("failed to report stop pending: %w", err)
			}
		}

	case running && *winding:
		// Continued before the task noticed the pause.
		*winding = false
		if token.completed() {
			if err := reporter.Running(); err != nil {
				return fmt.Errorf("failed to report running: %w", err)
			}
		} else if err := reporter.Starting(d.opts.waitHint); err != nil {
			return fmt.Errorf("failed to report start pending: %w", err)
		}
	}
	return nil
}
