// Package service runs an application task under the service control
// protocol of the host: it registers a control handler, tracks the run level
// the host asks for and reports status transitions back.
package service

import "errors"

// Host is the service-control exchange of the operating system.
type Host interface {
	// Serve hands the calling goroutine to the host dispatcher and blocks
	// until the service session ends. main is the service main; it runs
	// once per session.
	Serve(name string, main func(args []string)) error

	// Register installs handler as the control handler of name and returns
	// the sender used for status reports. handler receives raw control codes
	// and returns the acknowledgement code.
	Register(name string, handler func(code uint32) uint32) (StatusSender, error)
}

// ErrAlreadyServing is returned when a process tries to enter the host
// dispatcher a second time.
var ErrAlreadyServing = errors.New("service dispatcher already started in this process")

// ErrUnsupported is returned by host facilities missing on this platform.
var ErrUnsupported = errors.New("not supported on this platform")
