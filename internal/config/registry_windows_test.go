//go:build windows
// +build windows

package config

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/windows/registry"
)

func testRegistryStore(t *testing.T) *RegistryStore {
	t.Helper()
	prefix := fmt.Sprintf(`Software\winsvc-test-%d`, os.Getpid())
	t.Cleanup(func() {
		registry.DeleteKey(registry.CURRENT_USER, prefix+`\demo`)
		registry.DeleteKey(registry.CURRENT_USER, prefix)
	})
	return &RegistryStore{Root: registry.CURRENT_USER, Prefix: prefix}
}

func TestRegistryStore_SaveThenLoad(t *testing.T) {
	store := testRegistryStore(t)

	want := sampleConfig{Message: "from registry", Interval: Duration(3 * time.Second)}
	if err := store.Save("demo", &want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load[sampleConfig](store, "demo")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRegistryStore_MissingKey(t *testing.T) {
	store := testRegistryStore(t)
	if _, err := Load[sampleConfig](store, "demo"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
