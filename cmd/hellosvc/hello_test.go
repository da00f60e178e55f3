package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"winsvc/internal/config"
	"winsvc/internal/service"
)

// testHost runs the service main in-process and records status reports.
type testHost struct {
	mu       sync.Mutex
	handler  func(uint32) uint32
	statuses []service.State
}

func (h *testHost) Serve(name string, main func(args []string)) error {
	main(nil)
	return nil
}

func (h *testHost) Register(name string, handler func(uint32) uint32) (service.StatusSender, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
	return h, nil
}

func (h *testHost) SetStatus(st service.Status) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, st.State)
	return nil
}

func (h *testHost) control(code uint32) uint32 {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	return handler(code)
}

func (h *testHost) count(state service.State) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.statuses {
		if s == state {
			n++
		}
	}
	return n
}

type staticStore struct {
	cfg Config
}

func (s staticStore) Load(name string, v any) error {
	*(v.(*Config)) = s.cfg
	return nil
}

func (s staticStore) Save(name string, v any) error { return nil }

// eventually advances mock time until cond holds.
func eventually(t *testing.T, mock *clock.Mock, step time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		if step > 0 {
			mock.Add(step)
		}
		time.Sleep(time.Millisecond)
	}
}

func startHello(t *testing.T, cfg Config, sample func(context.Context) (Sample, error)) (*testHost, *clock.Mock, <-chan error) {
	t.Helper()
	mock := clock.NewMock()
	h := &hello{sample: sample, clock: mock}
	host := &testHost{}

	d := service.NewDispatcher(serviceName, host, staticStore{cfg: cfg}, h.run, service.WithClock(mock))
	errc := make(chan error, 1)
	go func() { errc <- d.Serve() }()
	return host, mock, errc
}

func stopHello(t *testing.T, host *testHost, errc <-chan error) {
	t.Helper()
	if ack := host.control(service.ControlStop); ack != service.AckOK {
		t.Errorf("stop ack = %d", ack)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if n := host.count(service.Stopped); n != 1 {
		t.Errorf("expected one stopped report, got %d", n)
	}
}

func TestHello_SamplesEveryInterval(t *testing.T) {
	var samples atomic.Int32
	sample := func(context.Context) (Sample, error) {
		samples.Add(1)
		return Sample{CPUPercent: 1, MemoryPercent: 2}, nil
	}

	cfg := Config{Message: "hello", Interval: config.Duration(5 * time.Second)}
	host, mock, errc := startHello(t, cfg, sample)

	eventually(t, mock, 0, func() bool { return host.count(service.Running) == 1 && samples.Load() == 1 })
	eventually(t, mock, 5*time.Second, func() bool { return samples.Load() >= 3 })

	stopHello(t, host, errc)
}

func TestHello_SampleErrorsAreNotFatal(t *testing.T) {
	var samples atomic.Int32
	sample := func(context.Context) (Sample, error) {
		samples.Add(1)
		return Sample{}, errors.New("counters unavailable")
	}

	host, mock, errc := startHello(t, Config{Message: "hello"}, sample)
	eventually(t, mock, DefaultInterval, func() bool { return samples.Load() >= 2 })

	stopHello(t, host, errc)
}

func TestHello_WarmUpHeartbeatsBeforeRunning(t *testing.T) {
	sample := func(context.Context) (Sample, error) { return Sample{}, nil }

	cfg := Config{Message: "slow", WarmUp: config.Duration(5 * time.Second)}
	host, mock, errc := startHello(t, cfg, sample)

	eventually(t, mock, time.Second, func() bool { return host.count(service.Running) == 1 })
	// The dispatcher's own start report plus at least one heartbeat.
	if n := host.count(service.StartPending); n < 2 {
		t.Errorf("expected heartbeat start reports, got %d", n)
	}

	stopHello(t, host, errc)
}

func TestHello_StopDuringWarmUp(t *testing.T) {
	sample := func(context.Context) (Sample, error) {
		t.Error("no sampling before startup completes")
		return Sample{}, nil
	}

	cfg := Config{Message: "slow", WarmUp: config.Duration(time.Hour)}
	host, _, errc := startHello(t, cfg, sample)

	deadline := time.Now().Add(2 * time.Second)
	for host.count(service.StartPending) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	stopHello(t, host, errc)
	if n := host.count(service.Running); n != 0 {
		t.Errorf("service should never have been running, got %d reports", n)
	}
}

func TestConfig_DefaultInterval(t *testing.T) {
	if got := (Config{}).interval(); got != DefaultInterval {
		t.Errorf("interval = %v, want %v", got, DefaultInterval)
	}
	if got := (Config{Interval: config.Duration(time.Minute)}).interval(); got != time.Minute {
		t.Errorf("interval = %v, want 1m", got)
	}
}

func TestSampleHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := sampleHost(ctx)
	if err != nil {
		t.Fatalf("sampleHost: %v", err)
	}
	if s.CoreCount <= 0 {
		t.Errorf("CoreCount = %d", s.CoreCount)
	}
	if s.MemoryTotal == 0 || s.MemoryUsed > s.MemoryTotal {
		t.Errorf("unexpected memory figures: used %d of %d", s.MemoryUsed, s.MemoryTotal)
	}
	if s.CPUPercent < 0 || s.CPUPercent > 100 {
		t.Errorf("CPUPercent = %f", s.CPUPercent)
	}
	t.Logf("cpu %.1f%%, memory %.1f%%, uptime %s", s.CPUPercent, s.MemoryPercent, s.Uptime)
}
