//go:build !windows
// +build !windows

package service

import "os"

// IsService reports whether the process looks supervised: a service
// manager such as systemd does not attach a terminal to stdin.
func IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}

// DefaultHost returns the host used when the process runs as a service.
func DefaultHost() Host {
	return NewConsoleHost()
}
