package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"

	"winsvc/internal/logger"
)

// DefaultDebounce coalesces the burst of events editors produce when
// saving a file.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher calls onChange once a watched file settles after being
// written, created or replaced.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func()
	watcher  *fsnotify.Watcher
	clock    clock.Clock

	mu      sync.Mutex
	running bool
	timer   *clock.Timer
	stop    chan struct{}
	done    chan struct{}
}

// NewFileWatcher creates a watcher for path. A debounce of zero uses
// DefaultDebounce.
func NewFileWatcher(path string, debounce time.Duration, onChange func()) (*FileWatcher, error) {
	return NewFileWatcherWithClock(path, debounce, onChange, clock.New())
}

// NewFileWatcherWithClock is NewFileWatcher with the debounce timer taken
// from clk.
func NewFileWatcherWithClock(path string, debounce time.Duration, onChange func(), clk clock.Clock) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
		clock:    clk,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the parent directory so that atomic replaces are seen.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return err
	}
	fw.running = true

	log := logger.WithComponent("file-watcher")
	log.Info().Str("path", fw.path).Msg("Started watching file")

	go fw.watch()
	return nil
}

// Stop ends the watch and waits for the event goroutine to exit. A
// pending debounced callback is dropped.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
	fw.mu.Unlock()

	close(fw.stop)
	err := fw.watcher.Close()
	<-fw.done
	return err
}

func (fw *FileWatcher) watch() {
	defer close(fw.done)

	log := logger.WithComponent("file-watcher")
	name := filepath.Base(fw.path)

	for {
		select {
		case <-fw.stop:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("path", fw.path).Str("event", event.Op.String()).Msg("File changed")
			fw.schedule()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", fw.path).Msg("File watcher error")
		}
	}
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.running {
		return
	}
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = fw.clock.AfterFunc(fw.debounce, fw.fire)
}

func (fw *FileWatcher) fire() {
	fw.mu.Lock()
	running := fw.running
	fw.timer = nil
	fw.mu.Unlock()

	if running && fw.onChange != nil {
		log := logger.WithComponent("file-watcher")
		log.Info().Str("path", fw.path).Msg("File changed, reloading")
		fw.onChange()
	}
}
