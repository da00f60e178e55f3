package service

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"winsvc/internal/config"
	"winsvc/internal/logger"
)

// AckServiceNotActive is returned for controls delivered before a handler
// is registered.
const AckServiceNotActive uint32 = 1062

// ConsoleHost runs a service in the foreground: interactively, or under a
// supervisor such as systemd. SIGINT and SIGTERM request Stop and a second
// signal forces the process to exit. Status reports are logged.
type ConsoleHost struct {
	// WatchPath, when set, is a configuration file whose changes restart the
	// task by delivering Pause followed by Continue.
	WatchPath string
	Debounce  time.Duration

	// RestartTimeout bounds how long a restart waits for the task to pause.
	RestartTimeout time.Duration

	// Exit is called on the second shutdown signal. Defaults to os.Exit.
	Exit func(code int)

	serving atomic.Bool

	mu      sync.Mutex
	handler func(code uint32) uint32
	quit    chan struct{}
	wg      sync.WaitGroup
	watcher *config.FileWatcher
	paused  *Signal
}

// DefaultRestartTimeout is used when RestartTimeout is zero.
const DefaultRestartTimeout = 30 * time.Second

// NewConsoleHost returns a console host without file watching.
func NewConsoleHost() *ConsoleHost {
	return &ConsoleHost{paused: NewSignal(false)}
}

// Serve runs main on the calling goroutine and releases signal handling
// and file watching once it returns.
func (h *ConsoleHost) Serve(name string, main func(args []string)) error {
	if !h.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	defer h.Close()

	log := logger.WithComponent("console-host")
	log.Info().Str("service", name).Msg("Running in console mode")

	var args []string
	if len(os.Args) > 1 {
		args = os.Args[1:]
	}
	main(args)
	return nil
}

// Register installs handler and starts delivering signals and file
// changes to it.
func (h *ConsoleHost) Register(name string, handler func(code uint32) uint32) (StatusSender, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handler != nil {
		return nil, ErrAlreadyServing
	}
	h.handler = handler
	h.quit = make(chan struct{})

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	h.wg.Add(1)
	go h.forwardSignals(sigs, h.quit)

	if h.WatchPath != "" {
		w, err := config.NewFileWatcher(h.WatchPath, h.Debounce, h.restart)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			_ = w.Stop()
			return nil, err
		}
		h.watcher = w
	}

	if h.paused == nil {
		h.paused = NewSignal(false)
	}
	return &consoleStatus{name: name, paused: h.paused}, nil
}

// Control delivers a raw control code to the registered handler and returns
// its acknowledgement.
func (h *ConsoleHost) Control(code uint32) uint32 {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()

	if handler == nil {
		return AckServiceNotActive
	}
	return handler(code)
}

// restart pauses the service, waits until the task has wound down and
// continues it, which starts the task again on a fresh configuration.
func (h *ConsoleHost) restart() {
	log := logger.WithComponent("console-host")
	log.Info().Str("path", h.WatchPath).Msg("Configuration changed, restarting task")

	h.mu.Lock()
	paused := h.paused
	quit := h.quit
	h.mu.Unlock()

	if ack := h.Control(ControlPause); ack != AckOK {
		log.Warn().Uint32("ack", ack).Msg("Pause for restart was rejected")
		return
	}

	timeout := h.RestartTimeout
	if timeout <= 0 {
		timeout = DefaultRestartTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	go func() {
		select {
		case <-quit:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := paused.Wait(ctx, true); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn().Dur("timeout", timeout).Msg("Task did not pause in time, continuing anyway")
	}
	h.Control(ControlContinue)
}

func (h *ConsoleHost) forwardSignals(sigs chan os.Signal, quit chan struct{}) {
	defer h.wg.Done()
	defer signal.Stop(sigs)

	log := logger.WithComponent("console-host")
	received := false
	for {
		select {
		case <-quit:
			return
		case sig := <-sigs:
			if received {
				log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
				exit := h.Exit
				if exit == nil {
					exit = os.Exit
				}
				exit(1)
				return
			}
			received = true
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			h.Control(ControlStop)
		}
	}
}

// Close stops signal forwarding and file watching. Serve calls it when
// the service main returns.
func (h *ConsoleHost) Close() {
	h.mu.Lock()
	quit := h.quit
	w := h.watcher
	h.quit = nil
	h.watcher = nil
	h.mu.Unlock()

	if w != nil {
		_ = w.Stop()
	}
	if quit != nil {
		close(quit)
	}
	h.wg.Wait()
}

type consoleStatus struct {
	name   string
	paused *Signal
}

func (s *consoleStatus) SetStatus(st Status) error {
	s.paused.Set(st.State == Paused)

	log := logger.WithComponent("console-host")
	log.Info().
		Str("service", s.name).
		Str("state", st.State.String()).
		Uint32("checkpoint", st.CheckPoint).
		Uint32("exit_code", st.ServiceSpecificExitCode).
		Msg("Service status")
	return nil
}
