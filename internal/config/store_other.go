//go:build !windows
// +build !windows

package config

// DefaultDir is where DefaultStore looks for <name>.json or <name>.yaml.
const DefaultDir = "/etc"

// DefaultStore returns the store services use when installed on this
// platform.
func DefaultStore() Store {
	return &FileStore{Dir: DefaultDir, Format: FormatYAML}
}
