// Package config persists and restores the typed configuration of a
// service by its service identifier.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store saves and loads configuration objects keyed by service name.
type Store interface {
	Load(name string, v any) error
	Save(name string, v any) error
}

// Load reads the configuration of name from s into a fresh T.
func Load[T any](s Store, name string) (T, error) {
	var cfg T
	if err := s.Load(name, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Format selects the encoding of a configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a file extension. Unknown
// extensions are treated as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ErrNotFound is returned when no configuration exists for a service.
var ErrNotFound = errors.New("configuration not found")

// FileStore keeps configuration in files. With Path set every service
// name maps to that one file; otherwise the file is <Dir>/<name>.json,
// <name>.yaml or <name>.yml, whichever exists first. Format picks the
// encoding Save writes when no file exists yet.
type FileStore struct {
	Dir    string
	Path   string
	Format Format
}

// Locate returns the file backing name.
func (s *FileStore) Locate(name string) (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		p := filepath.Join(s.Dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNotFound, name, s.Dir)
}

// Load decodes the file backing name into v.
func (s *FileStore) Load(name string, v any) error {
	path, err := s.Locate(name)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(FormatOf(path), data, v)
}

// Save encodes v into the file backing name, creating it if needed.
func (s *FileStore) Save(name string, v any) error {
	path, err := s.Locate(name)
	if err != nil {
		format := s.Format
		if format == "" {
			format = FormatJSON
		}
		path = filepath.Join(s.Dir, name+"."+string(format))
	}

	data, err := Encode(FormatOf(path), v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Decode parses data in the given format into v.
func Decode(format Format, data []byte, v any) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return nil
}

// Encode serializes v in the given format.
func Encode(format Format, v any) ([]byte, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config YAML: %w", err)
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config JSON: %w", err)
		}
		return data, nil
	}
}
