//go:build windows
// +build windows

package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
)

// WindowsHost talks to the Windows service control manager.
type WindowsHost struct{}

// session is the single service session of this process. The control
// manager calls back through plain function pointers, so the registered
// handler and service main live here instead of behind a context pointer.
var session struct {
	mu      sync.Mutex
	main    func(args []string)
	handler func(code uint32) uint32
}

var (
	serving atomic.Bool

	callbacksOnce       sync.Once
	serviceMainCallback uintptr
	ctlHandlerCallback  uintptr
)

var errAlreadyRegistered = errors.New("control handler already registered in this process")

func initCallbacks() {
	callbacksOnce.Do(func() {
		serviceMainCallback = windows.NewCallback(serviceMain)
		ctlHandlerCallback = windows.NewCallback(ctlHandler)
	})
}

// IsService reports whether the process was started by the control manager.
func IsService() bool {
	ok, err := svc.IsWindowsService()
	return err == nil && ok
}

// Serve connects the calling goroutine to the control manager. It returns
// once every service of the process has reported stopped.
func (WindowsHost) Serve(name string, main func(args []string)) error {
	if !serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	initCallbacks()

	session.mu.Lock()
	session.main = main
	session.mu.Unlock()

	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	table := []windows.SERVICE_TABLE_ENTRY{
		{ServiceName: namePtr, ServiceProc: serviceMainCallback},
		{ServiceName: nil, ServiceProc: 0},
	}
	return windows.StartServiceCtrlDispatcher(&table[0])
}

// Register installs handler as the control handler of name.
func (WindowsHost) Register(name string, handler func(code uint32) uint32) (StatusSender, error) {
	initCallbacks()

	session.mu.Lock()
	if session.handler != nil {
		session.mu.Unlock()
		return nil, errAlreadyRegistered
	}
	session.handler = handler
	session.mu.Unlock()

	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		clearHandler()
		return nil, err
	}
	h, err := windows.RegisterServiceCtrlHandlerEx(namePtr, ctlHandlerCallback, 0)
	if err != nil {
		clearHandler()
		return nil, err
	}
	return &statusHandle{h: h}, nil
}

func clearHandler() {
	session.mu.Lock()
	session.handler = nil
	session.mu.Unlock()
}

func serviceMain(argc uint32, argv **uint16) uintptr {
	args := make([]string, 0, argc)
	if argc > 0 && argv != nil {
		for _, p := range unsafe.Slice(argv, argc) {
			args = append(args, windows.UTF16PtrToString(p))
		}
	}

	session.mu.Lock()
	main := session.main
	session.mu.Unlock()

	if main != nil {
		main(args)
	}
	return 0
}

func ctlHandler(ctl, evtype, evdata, context uintptr) uintptr {
	session.mu.Lock()
	handler := session.handler
	session.mu.Unlock()

	if handler == nil {
		return uintptr(windows.ERROR_CALL_NOT_IMPLEMENTED)
	}
	return uintptr(handler(uint32(ctl)))
}

type statusHandle struct {
	h windows.Handle
}

func (s *statusHandle) SetStatus(st Status) error {
	raw := toServiceStatus(st)
	return windows.SetServiceStatus(s.h, &raw)
}

func toServiceStatus(st Status) windows.SERVICE_STATUS {
	return windows.SERVICE_STATUS{
		ServiceType:             windows.SERVICE_WIN32_OWN_PROCESS,
		CurrentState:            uint32(st.State),
		ControlsAccepted:        toControlsAccepted(st.Accepts),
		Win32ExitCode:           st.ExitCode,
		ServiceSpecificExitCode: st.ServiceSpecificExitCode,
		CheckPoint:              st.CheckPoint,
		WaitHint:                uint32(st.WaitHint / time.Millisecond),
	}
}

// toControlsAccepted folds pause and continue into the single flag the
// control manager understands.
func toControlsAccepted(a Accepted) uint32 {
	var flags uint32
	if a&AcceptStop != 0 {
		flags |= windows.SERVICE_ACCEPT_STOP
	}
	if a&(AcceptPause|AcceptContinue) != 0 {
		flags |= windows.SERVICE_ACCEPT_PAUSE_CONTINUE
	}
	return flags
}

// DefaultHost returns the host used when the process runs as a service.
func DefaultHost() Host {
	return WindowsHost{}
}
