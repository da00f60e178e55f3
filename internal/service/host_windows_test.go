//go:build windows
// +build windows

package service

import (
	"testing"
	"time"

	"golang.org/x/sys/windows"
)

func TestToControlsAccepted(t *testing.T) {
	tests := []struct {
		state State
		want  uint32
	}{
		{StartPending, 0},
		{Running, windows.SERVICE_ACCEPT_STOP | windows.SERVICE_ACCEPT_PAUSE_CONTINUE},
		{Paused, windows.SERVICE_ACCEPT_STOP | windows.SERVICE_ACCEPT_PAUSE_CONTINUE},
		{StopPending, 0},
		{Stopped, 0},
	}
	for _, tt := range tests {
		if got := toControlsAccepted(AcceptsFor(tt.state)); got != tt.want {
			t.Errorf("%s: controls accepted = %#x, want %#x", tt.state, got, tt.want)
		}
	}
}

func TestToServiceStatus(t *testing.T) {
	raw := toServiceStatus(Status{
		State:                   Stopped,
		CheckPoint:              4,
		WaitHint:                1500 * time.Millisecond,
		ExitCode:                errorServiceSpecific,
		ServiceSpecificExitCode: ExitTaskFailed,
	})
	if raw.ServiceType != windows.SERVICE_WIN32_OWN_PROCESS {
		t.Errorf("service type = %#x", raw.ServiceType)
	}
	if raw.CurrentState != windows.SERVICE_STOPPED {
		t.Errorf("state = %d", raw.CurrentState)
	}
	if raw.WaitHint != 1500 || raw.CheckPoint != 4 {
		t.Errorf("wait hint %d checkpoint %d", raw.WaitHint, raw.CheckPoint)
	}
	if raw.Win32ExitCode != uint32(windows.ERROR_SERVICE_SPECIFIC_ERROR) || raw.ServiceSpecificExitCode != ExitTaskFailed {
		t.Errorf("exit codes %d/%d", raw.Win32ExitCode, raw.ServiceSpecificExitCode)
	}
}

func TestWindowsHost_ControlWithoutHandler(t *testing.T) {
	if got := ctlHandler(uintptr(ControlStop), 0, 0, 0); got != uintptr(windows.ERROR_CALL_NOT_IMPLEMENTED) {
		t.Errorf("expected ERROR_CALL_NOT_IMPLEMENTED, got %d", got)
	}
}
