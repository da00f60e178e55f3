//go:build !windows
// +build !windows

package scm

// Install is not supported without a service control manager.
func (m *Manager) Install(def Definition) error { return ErrUnsupported }

// Uninstall is not supported without a service control manager.
func (m *Manager) Uninstall(name string) error { return ErrUnsupported }

// Start is not supported without a service control manager.
func (m *Manager) Start(name string) error { return ErrUnsupported }

// Stop is not supported without a service control manager.
func (m *Manager) Stop(name string) error { return ErrUnsupported }
