//go:build !windows
// +build !windows

package service

// ReportStartupError is a no-op on non-Windows platforms.
func ReportStartupError(serviceName string, err error) {}

// ReportSessionError is a no-op on non-Windows platforms.
func ReportSessionError(serviceName string, err error) {}

// RemoveEventSource is a no-op on non-Windows platforms.
func RemoveEventSource(serviceName string) error { return nil }
