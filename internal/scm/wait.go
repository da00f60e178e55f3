package scm

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"winsvc/internal/logger"
	"winsvc/internal/service"
)

// serviceStatus is the part of a queried service status the waits need.
type serviceStatus struct {
	State    service.State
	WaitHint time.Duration
}

// handle is an opened service.
type handle interface {
	query() (serviceStatus, error)
	start() error
	stop() error
}

// waitFor reports whether the service is in target, waiting while it is in
// pending. It returns false for any other state seen on the first query.
func waitFor(clk clock.Clock, h handle, pending, target service.State) (bool, error) {
	st, err := h.query()
	if err != nil {
		return false, err
	}
	switch st.State {
	case target:
		return true, nil
	case pending:
	default:
		return false, nil
	}

	log := logger.WithComponent("scm")
	for {
		log.Debug().
			Str("state", st.State.String()).
			Dur("wait_hint", st.WaitHint).
			Msg("Waiting for service")
		clk.Sleep(pollInterval(st.WaitHint))

		if st, err = h.query(); err != nil {
			return false, err
		}
		switch st.State {
		case target:
			return true, nil
		case pending:
		default:
			return false, fmt.Errorf("%w: %s while waiting for %s", ErrUnexpectedState, st.State, target)
		}
	}
}

// startAndWait starts the service unless it is running or starting and
// waits until it runs.
func startAndWait(clk clock.Clock, h handle) error {
	ok, err := waitFor(clk, h, service.StartPending, service.Running)
	if err != nil || ok {
		return err
	}
	if err := h.start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	ok, err = waitFor(clk, h, service.StartPending, service.Running)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: service did not start", ErrUnexpectedState)
	}
	return nil
}

// stopAndWait asks the service to stop unless it is stopped or stopping and
// waits until it stops.
func stopAndWait(clk clock.Clock, h handle) error {
	ok, err := waitFor(clk, h, service.StopPending, service.Stopped)
	if err != nil || ok {
		return err
	}
	if err := h.stop(); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}
	ok, err = waitFor(clk, h, service.StopPending, service.Stopped)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: service did not stop", ErrUnexpectedState)
	}
	return nil
}
