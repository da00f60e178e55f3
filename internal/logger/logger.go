// Package logger provides structured logging with file rotation support.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// asyncWriter decouples callers from a slow console. Writes are copied
// into a bounded buffer drained by a background goroutine and dropped when
// the buffer is full, so a stuck console (Quick Edit mode) can never stall
// a status report or a control callback.
type asyncWriter struct {
	ch     chan []byte
	w      io.Writer
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:   make(chan []byte, bufSize),
		w:    w,
		done: make(chan struct{}),
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return len(p), nil
	}
	cp := append([]byte(nil), p...)
	select {
	case aw.ch <- cp:
	default:
	}
	return len(p), nil
}

func (aw *asyncWriter) drain() {
	defer close(aw.done)
	for p := range aw.ch {
		_, _ = aw.w.Write(p)
	}
}

// Close flushes buffered writes and stops the drain goroutine.
func (aw *asyncWriter) Close() {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		close(aw.ch)
		aw.mu.Unlock()
		<-aw.done
	})
}

// Config holds the logger configuration.
type Config struct {
	Level      string `json:"Level" yaml:"level"`
	FilePath   string `json:"FilePath" yaml:"file_path"`
	MaxSizeMB  int    `json:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `json:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `json:"MaxAgeDays" yaml:"max_age_days"`
	Compress   bool   `json:"Compress" yaml:"compress"`
	Console    bool   `json:"Console" yaml:"console"`
}

// DefaultConfig logs info and above to the console only.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    true,
	}
}

var (
	mu               sync.Mutex
	serviceMode      bool
	timeFormatOnce   sync.Once
	globalLogger     zerolog.Logger
	prevFileWriter   io.Closer
	prevConsoleAsync *asyncWriter
)

// SetServiceMode marks the process as hosted by the service control
// manager. A service has no console, so console output is suppressed on
// the next Init.
func SetServiceMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	serviceMode = enabled
}

// Init (re)initializes the global logger. Writers of a previous Init are
// flushed and closed before the new configuration takes effect.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	closeWritersLocked()

	// Console writers read the time format while formatting, possibly
	// from a drain goroutine, so it is only ever written once.
	timeFormatOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		prevFileWriter = fileWriter
		writers = append(writers, fileWriter)
	}

	if cfg.Console && !serviceMode {
		aw := newAsyncWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, 1000)
		prevConsoleAsync = aw
		writers = append(writers, aw)
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	globalLogger = zerolog.New(output).With().Timestamp().Logger()
	return nil
}

// Close flushes and closes the writers of the last Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeWritersLocked()
	globalLogger = zerolog.New(io.Discard)
}

func closeWritersLocked() {
	if prevConsoleAsync != nil {
		prevConsoleAsync.Close()
		prevConsoleAsync = nil
	}
	if prevFileWriter != nil {
		prevFileWriter.Close()
		prevFileWriter = nil
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// WithComponent returns a logger with component field.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
