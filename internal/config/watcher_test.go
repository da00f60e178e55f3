package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestFileWatcher_DebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")
	os.WriteFile(path, []byte(`{}`), 0644)

	mock := clock.NewMock()
	var calls atomic.Int32
	fired := make(chan struct{}, 4)
	w, err := NewFileWatcherWithClock(path, 50*time.Millisecond, func() {
		calls.Add(1)
		fired <- struct{}{}
	}, mock)
	if err != nil {
		t.Fatalf("NewFileWatcherWithClock: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		w.schedule()
		mock.Add(30 * time.Millisecond)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("callback fired before the burst settled, calls = %d", n)
	}

	mock.Add(20 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called")
	}
	mock.Add(time.Second)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one debounced callback, got %d", n)
	}
}

func TestFileWatcher_CallsBackOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")
	os.WriteFile(path, []byte(`{}`), 0644)

	fired := make(chan struct{}, 4)
	w, err := NewFileWatcher(path, 10*time.Millisecond, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	os.WriteFile(path, []byte(`{"n":1}`), 0644)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called")
	}
}

func TestFileWatcher_StopDropsPendingCallback(t *testing.T) {
	mock := clock.NewMock()
	var calls atomic.Int32
	w, err := NewFileWatcherWithClock(filepath.Join(t.TempDir(), "demo.json"), time.Second, func() { calls.Add(1) }, mock)
	if err != nil {
		t.Fatalf("NewFileWatcherWithClock: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.schedule()
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	mock.Add(2 * time.Second)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no callback after Stop, got %d", n)
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.json")
	os.WriteFile(path, []byte(`{}`), 0644)

	var calls atomic.Int32
	w, err := NewFileWatcher(path, 10*time.Millisecond, func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644)
	time.Sleep(100 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no callbacks, got %d", n)
	}
}

func TestFileWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "x.json"), 0, func() {})
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("expected default debounce, got %v", w.debounce)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
