package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"winsvc/internal/config"
	"winsvc/internal/logger"
	"winsvc/internal/service"
)

// DefaultInterval is how often host statistics are logged when the
// configuration does not say.
const DefaultInterval = 10 * time.Second

// Config is the configuration of the hello service.
type Config struct {
	Message string `json:"message" yaml:"message"`
	// Interval between host statistics log lines.
	Interval config.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	// WarmUp delays completing startup, reporting progress meanwhile.
	WarmUp config.Duration `json:"warm_up,omitempty" yaml:"warm_up,omitempty"`
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	return c.Interval.Std()
}

// Sample is a snapshot of host resource usage.
type Sample struct {
	CPUPercent    float64
	CoreCount     int
	MemoryPercent float64
	MemoryUsed    uint64
	MemoryTotal   uint64
	Uptime        time.Duration
}

// sampleHost reads CPU, memory and uptime of the host.
func sampleHost(ctx context.Context) (Sample, error) {
	s := Sample{CoreCount: runtime.NumCPU()}

	percentages, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return s, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percentages) > 0 {
		s.CPUPercent = percentages[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to read memory usage: %w", err)
	}
	s.MemoryPercent = vm.UsedPercent
	s.MemoryUsed = vm.Used
	s.MemoryTotal = vm.Total

	// Uptime is informational only.
	if up, err := host.UptimeWithContext(ctx); err == nil {
		s.Uptime = time.Duration(up) * time.Second
	}
	return s, nil
}

// hello is the service task. It logs a greeting and host statistics until
// the service leaves the started state.
type hello struct {
	sample func(ctx context.Context) (Sample, error)
	clock  clock.Clock
}

func newHello() *hello {
	return &hello{sample: sampleHost, clock: clock.New()}
}

func (h *hello) run(cfg Config, init *service.InitToken, running *service.Receiver) error {
	log := logger.WithComponent("hello")

	ctx, cancel := running.Context(context.Background())
	defer cancel()

	if warmUp := cfg.WarmUp.Std(); warmUp > 0 {
		log.Info().Dur("warm_up", warmUp).Msg("Warming up")
		stop := init.Heartbeat(time.Second, 3*time.Second)
		timer := h.clock.Timer(warmUp)
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		timer.Stop()
		stop()
		if ctx.Err() != nil {
			log.Info().Msg("Left started state during warm-up")
			return nil
		}
	}

	if err := init.Complete(); err != nil {
		return err
	}
	log.Info().Msgf("entering %s", cfg.Message)

	ticker := h.clock.Ticker(cfg.interval())
	defer ticker.Stop()

	h.report(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("exiting %s", cfg.Message)
			return nil
		case <-ticker.C:
			h.report(ctx)
		}
	}
}

func (h *hello) report(ctx context.Context) {
	log := logger.WithComponent("hello")

	sampleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s, err := h.sample(sampleCtx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to sample host")
		}
		return
	}
	log.Info().
		Float64("cpu_percent", s.CPUPercent).
		Int("cores", s.CoreCount).
		Float64("memory_percent", s.MemoryPercent).
		Uint64("memory_used", s.MemoryUsed).
		Uint64("memory_total", s.MemoryTotal).
		Dur("uptime", s.Uptime).
		Msg("Host statistics")
}
