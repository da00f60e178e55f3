package service

import (
	"errors"
	"fmt"
	"syscall"
)

// Event is a decoded control request from the host.
type Event int

const (
	Interrogate Event = iota + 1
	ParamChange
	Pause
	Continue
	Stop
)

func (e Event) String() string {
	switch e {
	case Interrogate:
		return "interrogate"
	case ParamChange:
		return "param-change"
	case Pause:
		return "pause"
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Raw control codes as delivered by the Windows control manager.
const (
	ControlStop        uint32 = 1
	ControlPause       uint32 = 2
	ControlContinue    uint32 = 3
	ControlInterrogate uint32 = 4
	ControlShutdown    uint32 = 5
	ControlParamChange uint32 = 6
)

// Acknowledgement codes returned to the host.
const (
	AckOK             uint32 = 0
	AckGenFailure     uint32 = 31
	AckNotImplemented uint32 = 120
)

// ControlError is a handler failure carrying the numeric code
// acknowledged to the host.
type ControlError struct {
	Code uint32
	Msg  string
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Msg, e.Code)
}

// ErrNotImplemented acknowledges a control the service does not handle.
var ErrNotImplemented = &ControlError{Code: AckNotImplemented, Msg: "control not implemented"}

// EventHandler reacts to one decoded control request.
type EventHandler func(Event) error

// DecodeEvent maps a raw control code to an Event.
func DecodeEvent(code uint32) (Event, bool) {
	switch code {
	case ControlInterrogate:
		return Interrogate, true
	case ControlParamChange:
		return ParamChange, true
	case ControlPause:
		return Pause, true
	case ControlContinue:
		return Continue, true
	case ControlStop:
		return Stop, true
	default:
		return 0, false
	}
}

// HandleControl decodes code, runs h for recognized events and returns the
// acknowledgement for the host. Interrogate is always acknowledged.
func HandleControl(code uint32, h EventHandler) uint32 {
	ev, ok := DecodeEvent(code)
	if !ok {
		return AckNotImplemented
	}

	ack := AckCode(h(ev))
	if ev == Interrogate {
		return AckOK
	}
	return ack
}

// AckCode translates a handler result into an acknowledgement code.
func AckCode(err error) uint32 {
	if err == nil {
		return AckOK
	}

	var ce *ControlError
	if errors.As(err, &ce) {
		return ce.Code
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}

	return AckGenFailure
}
