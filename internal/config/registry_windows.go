//go:build windows
// +build windows

package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// RegistryValueName is the value under the service key that holds the
// configuration.
const RegistryValueName = "Configuration"

// RegistryStore keeps configuration as a JSON string value under
// <Root>\<Prefix>\<name>. The zero value uses the service keys of the
// control manager in HKEY_LOCAL_MACHINE.
type RegistryStore struct {
	Root   registry.Key
	Prefix string
}

func (s *RegistryStore) root() registry.Key {
	if s.Root == 0 {
		return registry.LOCAL_MACHINE
	}
	return s.Root
}

func (s *RegistryStore) keyPath(name string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = `SYSTEM\CurrentControlSet\Services`
	}
	return prefix + `\` + name
}

// Load decodes the Configuration value of name into v.
func (s *RegistryStore) Load(name string, v any) error {
	path := s.keyPath(name)
	k, err := registry.OpenKey(s.root(), path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to open registry key %s: %w", path, err)
	}
	defer k.Close()

	raw, _, err := k.GetStringValue(RegistryValueName)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return fmt.Errorf("%w: %s\\%s", ErrNotFound, path, RegistryValueName)
		}
		return fmt.Errorf("failed to read registry value %s: %w", RegistryValueName, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to parse registry configuration: %w", err)
	}
	return nil
}

// Save writes v as the Configuration value of name, creating the key.
func (s *RegistryStore) Save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode registry configuration: %w", err)
	}

	path := s.keyPath(name)
	k, _, err := registry.CreateKey(s.root(), path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create registry key %s: %w", path, err)
	}
	defer k.Close()

	if err := k.SetStringValue(RegistryValueName, string(data)); err != nil {
		return fmt.Errorf("failed to write registry value %s: %w", RegistryValueName, err)
	}
	return nil
}

// DefaultStore returns the store services use when installed on this
// platform.
func DefaultStore() Store {
	return &RegistryStore{}
}
