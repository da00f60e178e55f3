// Package scm installs, removes, starts and stops services through the
// local service control manager.
package scm

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"winsvc/internal/config"
	"winsvc/internal/service"
)

// NetworkService is the account installed services run under.
const NetworkService = `NT AUTHORITY\NetworkService`

// RunAsServiceCommand is the command line verb the control manager invokes
// the installed executable with.
const RunAsServiceCommand = "run-as-service"

var (
	// ErrUnexpectedState is returned when a service leaves the pending state
	// for anything but the state being waited for.
	ErrUnexpectedState = errors.New("service entered an unexpected state")

	// ErrUnsupported is returned on platforms without a service control
	// manager.
	ErrUnsupported = service.ErrUnsupported
)

// LogFlags are forwarded to the installed service command line.
type LogFlags struct {
	File   string
	Filter string
}

// Definition describes a service to install.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	// Account defaults to NetworkService.
	Account string
	Log     LogFlags
	// Config is saved to the manager's store under Name after the service
	// is created. Nil skips saving.
	Config any
}

// Args returns the arguments the control manager passes to the
// executable when starting the service.
func (s Definition) Args() []string {
	args := []string{RunAsServiceCommand}
	if s.Log.File != "" {
		args = append(args, "--log-file", s.Log.File)
	}
	if s.Log.Filter != "" {
		args = append(args, "--log-filter", s.Log.Filter)
	}
	return args
}

func (s Definition) account() string {
	if s.Account == "" {
		return NetworkService
	}
	return s.Account
}

// Manager talks to the local service control manager.
type Manager struct {
	// Store receives the configuration of installed services.
	Store config.Store
	Clock clock.Clock
}

// NewManager returns a manager saving configuration to store.
func NewManager(store config.Store) *Manager {
	return &Manager{Store: store, Clock: clock.New()}
}

func (m *Manager) clock() clock.Clock {
	if m.Clock == nil {
		return clock.New()
	}
	return m.Clock
}

func (m *Manager) saveConfig(def Definition) error {
	if def.Config == nil || m.Store == nil {
		return nil
	}
	if err := m.Store.Save(def.Name, def.Config); err != nil {
		return fmt.Errorf("failed to save configuration for %s: %w", def.Name, err)
	}
	return nil
}

// Poll interval bounds applied to the wait hint a service reports.
const (
	minPollInterval = 100 * time.Millisecond
	maxPollInterval = 10 * time.Second
)

func pollInterval(hint time.Duration) time.Duration {
	switch {
	case hint < minPollInterval:
		return minPollInterval
	case hint > maxPollInterval:
		return maxPollInterval
	default:
		return hint
	}
}
