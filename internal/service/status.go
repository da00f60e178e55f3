package service

import (
	"errors"
	"sync"
	"time"

	"winsvc/internal/logger"
)

// State is the current_state value reported to the host. Values match the
// SERVICE_* state constants of the Windows control manager.
type State uint32

const (
	Stopped         State = 1
	StartPending    State = 2
	StopPending     State = 3
	Running         State = 4
	ContinuePending State = 5
	PausePending    State = 6
	Paused          State = 7
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case StartPending:
		return "start-pending"
	case StopPending:
		return "stop-pending"
	case Running:
		return "running"
	case ContinuePending:
		return "continue-pending"
	case PausePending:
		return "pause-pending"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Pending reports whether s is a transitional state bounded by a wait hint.
func (s State) Pending() bool {
	return s == StartPending || s == StopPending || s == ContinuePending || s == PausePending
}

// Accepted is the set of controls the host may currently send. Hosts
// that cannot advertise pause and continue separately fold them together.
type Accepted uint32

const (
	AcceptStop Accepted = 1 << iota
	AcceptPause
	AcceptContinue
)

// AcceptsFor returns the capability set advertised for state.
func AcceptsFor(state State) Accepted {
	switch state {
	case Running:
		return AcceptStop | AcceptPause
	case Paused:
		return AcceptStop | AcceptContinue
	default:
		return 0
	}
}

// Exit codes carried by StoppedWithError as the service-specific exit code.
const (
	ExitConfigLoad uint32 = 1
	ExitTaskFailed uint32 = 2
)

// errorServiceSpecific is ERROR_SERVICE_SPECIFIC_ERROR.
const errorServiceSpecific uint32 = 1066

// Status is the record sent to the host on every report.
type Status struct {
	State                   State
	Accepts                 Accepted
	CheckPoint              uint32
	WaitHint                time.Duration
	ExitCode                uint32
	ServiceSpecificExitCode uint32
}

// StatusSender delivers a status record to the host.
type StatusSender interface {
	SetStatus(Status) error
}

// ErrReporterStopped is returned by every transition after Stopped was reported.
var ErrReporterStopped = errors.New("service status already reported as stopped")

// Reporter owns the status record of one registration and serializes
// reports to the host.
type Reporter struct {
	mu      sync.Mutex
	sender  StatusSender
	status  Status
	stopped bool
}

// NewReporter returns a reporter in the initial start-pending record.
func NewReporter(sender StatusSender) *Reporter {
	return &Reporter{
		sender: sender,
		status: Status{
			State:    StartPending,
			WaitHint: time.Second,
		},
	}
}

// Current returns a copy of the last assembled record.
func (r *Reporter) Current() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Send resends the current record unchanged.
func (r *Reporter) Send() error {
	return r.report(func(*Status) {})
}

// Starting reports start-pending. It is also the still-starting report and
// may be called repeatedly.
func (r *Reporter) Starting(hint time.Duration) error {
	return r.report(func(s *Status) { pending(s, StartPending, hint) })
}

// Pausing reports pause-pending.
func (r *Reporter) Pausing(hint time.Duration) error {
	return r.report(func(s *Status) { pending(s, PausePending, hint) })
}

// Stopping reports stop-pending.
func (r *Reporter) Stopping(hint time.Duration) error {
	return r.report(func(s *Status) { pending(s, StopPending, hint) })
}

// Paused reports the paused state.
func (r *Reporter) Paused() error {
	return r.report(func(s *Status) {
		s.State = Paused
		s.Accepts = AcceptsFor(Paused)
		s.CheckPoint++
	})
}

// Running reports the running state and resets the checkpoint.
func (r *Reporter) Running() error {
	return r.report(func(s *Status) {
		s.State = Running
		s.Accepts = AcceptsFor(Running)
		s.CheckPoint = 0
	})
}

// Stopped reports the terminal stopped state.
func (r *Reporter) Stopped() error {
	return r.stop(0, 0)
}

// StoppedWithError reports the terminal stopped state with a
// service-specific exit code.
func (r *Reporter) StoppedWithError(code uint32) error {
	return r.stop(errorServiceSpecific, code)
}

func (r *Reporter) stop(exitCode, specific uint32) error {
	return r.report(func(s *Status) {
		s.State = Stopped
		s.Accepts = AcceptsFor(Stopped)
		s.ExitCode = exitCode
		s.ServiceSpecificExitCode = specific
	})
}

func pending(s *Status, state State, hint time.Duration) {
	s.State = state
	s.Accepts = AcceptsFor(state)
	s.CheckPoint++
	s.WaitHint = hint
}

func (r *Reporter) report(apply func(*Status)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrReporterStopped
	}

	apply(&r.status)
	if r.status.State == Stopped {
		r.stopped = true
	}

	log := logger.WithComponent("status")
	log.Debug().
		Str("state", r.status.State.String()).
		Uint32("checkpoint", r.status.CheckPoint).
		Dur("wait_hint", r.status.WaitHint).
		Msg("Sending service status")

	return r.sender.SetStatus(r.status)
}
