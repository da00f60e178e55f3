package service

import (
	"errors"
	"math/rand"
	"testing"
)

func TestCoordinator_Initial(t *testing.T) {
	c := NewCoordinator()
	if c.Level() != LevelStarted {
		t.Errorf("expected started, got %s", c.Level())
	}
	if !c.Running().Load() || c.Paused().Load() {
		t.Errorf("expected running=true paused=false, got %v/%v", c.Running().Load(), c.Paused().Load())
	}
}

func TestCoordinator_PauseContinueStop(t *testing.T) {
	c := NewCoordinator()

	if err := c.Apply(Pause); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if c.Level() != LevelPaused || c.Running().Load() || !c.Paused().Load() {
		t.Errorf("after pause: level=%s running=%v paused=%v", c.Level(), c.Running().Load(), c.Paused().Load())
	}

	if err := c.Apply(Continue); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if c.Level() != LevelStarted || !c.Running().Load() || c.Paused().Load() {
		t.Errorf("after continue: level=%s running=%v paused=%v", c.Level(), c.Running().Load(), c.Paused().Load())
	}

	if err := c.Apply(Stop); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.Level() != LevelStopped || c.Running().Load() || c.Paused().Load() {
		t.Errorf("after stop: level=%s running=%v paused=%v", c.Level(), c.Running().Load(), c.Paused().Load())
	}
}

func TestCoordinator_RepeatedEventsAreIdempotent(t *testing.T) {
	c := NewCoordinator()
	c.Apply(Pause)
	v := c.Paused().Subscribe()

	c.Apply(Pause)
	select {
	case <-v.Changed():
		t.Error("repeating pause should not flip the paused signal")
	default:
	}
	if c.Level() != LevelPaused {
		t.Errorf("expected paused, got %s", c.Level())
	}
}

func TestCoordinator_NonLevelEvents(t *testing.T) {
	c := NewCoordinator()

	if err := c.Apply(Interrogate); err != nil {
		t.Errorf("interrogate: expected nil, got %v", err)
	}
	if err := c.Apply(ParamChange); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("param change: expected ErrNotImplemented, got %v", err)
	}
	if c.Level() != LevelStarted {
		t.Errorf("level changed to %s", c.Level())
	}
}

func TestCoordinator_StopIsTerminal(t *testing.T) {
	c := NewCoordinator()
	c.Apply(Stop)

	for _, ev := range []Event{Continue, Pause, Stop, Interrogate} {
		if err := c.Apply(ev); err != nil {
			t.Errorf("%s after stop: unexpected error %v", ev, err)
		}
		if c.Level() != LevelStopped {
			t.Fatalf("%s after stop changed level to %s", ev, c.Level())
		}
	}
	if c.Running().Load() || c.Paused().Load() {
		t.Error("signals must stay false after stop")
	}
}

// The final level is decided by the last Pause, Continue or Stop before the
// first Stop; every other event leaves the level alone.
func TestCoordinator_EventSequencesProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	codes := []uint32{ControlPause, ControlContinue, ControlStop, ControlInterrogate, ControlParamChange, ControlShutdown, 0x7f}

	for iter := 0; iter < 500; iter++ {
		c := NewCoordinator()
		want := LevelStarted
		stopped := false

		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			code := codes[rng.Intn(len(codes))]
			HandleControl(code, c.Apply)

			if stopped {
				continue
			}
			switch code {
			case ControlPause:
				want = LevelPaused
			case ControlContinue:
				want = LevelStarted
			case ControlStop:
				want = LevelStopped
				stopped = true
			}
		}

		if c.Level() != want {
			t.Fatalf("iteration %d: level %s, want %s", iter, c.Level(), want)
		}
		if got := c.Running().Load(); got != (want == LevelStarted) {
			t.Fatalf("iteration %d: running=%v for level %s", iter, got, want)
		}
		if got := c.Paused().Load(); got != (want == LevelPaused) {
			t.Fatalf("iteration %d: paused=%v for level %s", iter, got, want)
		}
	}
}
