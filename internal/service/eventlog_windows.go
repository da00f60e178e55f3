//go:build windows
// +build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// Event log IDs written by ReportStartupError.
const (
	eventIDStartup  uint32 = 1
	eventIDDispatch uint32 = 2
)

// ReportStartupError writes err to the Windows Event Log under the
// service's event source, so "net start" failures are visible even when the
// logger has not been initialized.
func ReportStartupError(serviceName string, err error) {
	reportEvent(serviceName, eventIDStartup, fmt.Sprintf("Failed to start: %v", err))
}

// ReportSessionError records an error that ended a running service session.
func ReportSessionError(serviceName string, err error) {
	reportEvent(serviceName, eventIDDispatch, fmt.Sprintf("Service session ended: %v", err))
}

func reportEvent(serviceName string, id uint32, msg string) {
	// Registering the source again fails harmlessly when it already exists.
	_ = eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, err := eventlog.Open(serviceName)
	if err != nil {
		return
	}
	defer elog.Close()

	_ = elog.Error(id, msg)
}

// RemoveEventSource unregisters the event source of serviceName.
func RemoveEventSource(serviceName string) error {
	return eventlog.Remove(serviceName)
}
