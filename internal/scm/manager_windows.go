//go:build windows
// +build windows

package scm

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"winsvc/internal/logger"
	"winsvc/internal/service"
)

// Install creates an auto-start service running this executable and saves
// its configuration.
func (m *Manager) Install(def Definition) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	sm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service control manager: %w", err)
	}
	defer sm.Disconnect()

	displayName := def.DisplayName
	if displayName == "" {
		displayName = def.Name
	}

	s, err := sm.CreateService(def.Name, exe, mgr.Config{
		ServiceType:      windows.SERVICE_WIN32_OWN_PROCESS,
		StartType:        mgr.StartAutomatic,
		ErrorControl:     mgr.ErrorNormal,
		DisplayName:      displayName,
		Description:      def.Description,
		ServiceStartName: def.account(),
	}, def.Args()...)
	if err != nil {
		return fmt.Errorf("failed to create service %s: %w", def.Name, err)
	}
	defer s.Close()

	log := logger.WithComponent("scm")
	log.Info().
		Str("service", def.Name).
		Str("binary", exe).
		Strs("args", def.Args()).
		Str("account", def.account()).
		Msg("Service installed")

	return m.saveConfig(def)
}

// Uninstall marks the service for deletion and removes its event source.
func (m *Manager) Uninstall(name string) error {
	return m.withService(name, func(s *mgr.Service) error {
		if err := s.Delete(); err != nil {
			return fmt.Errorf("failed to delete service %s: %w", name, err)
		}
		if err := service.RemoveEventSource(name); err != nil && !errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
			log := logger.WithComponent("scm")
			log.Warn().Err(err).Str("service", name).Msg("Failed to remove event source")
		}
		return nil
	})
}

// Start starts the service and waits until it is running. A service that
// is already running or starting is only waited for.
func (m *Manager) Start(name string) error {
	return m.withService(name, func(s *mgr.Service) error {
		return startAndWait(m.clock(), mgrHandle{s})
	})
}

// Stop stops the service and waits until it has stopped.
func (m *Manager) Stop(name string) error {
	return m.withService(name, func(s *mgr.Service) error {
		return stopAndWait(m.clock(), mgrHandle{s})
	})
}

func (m *Manager) withService(name string, fn func(s *mgr.Service) error) error {
	sm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service control manager: %w", err)
	}
	defer sm.Disconnect()

	s, err := sm.OpenService(name)
	if err != nil {
		return fmt.Errorf("failed to open service %s: %w", name, err)
	}
	defer s.Close()

	return fn(s)
}

type mgrHandle struct {
	s *mgr.Service
}

func (h mgrHandle) query() (serviceStatus, error) {
	st, err := h.s.Query()
	if err != nil {
		return serviceStatus{}, fmt.Errorf("failed to query service status: %w", err)
	}
	return serviceStatus{
		State:    service.State(st.State),
		WaitHint: time.Duration(st.WaitHint) * time.Millisecond,
	}, nil
}

func (h mgrHandle) start() error {
	return h.s.Start()
}

func (h mgrHandle) stop() error {
	_, err := h.s.Control(svc.Stop)
	return err
}
