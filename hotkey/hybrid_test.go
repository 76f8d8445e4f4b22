package hotkey

import (
	"context"
	"testing"
	"time"
)

const threshold = 50 * time.Millisecond

type step int

const (
	press step = iota
	release
	hold     // sleep past the long-press threshold
	pause    // short sleep to let the state machine settle
	started  // a start event must arrive
	stopped  // a stop event must arrive
	noStop   // no stop event within a short window
	isToggle // IsToggle must be true
	isPTT    // IsToggle must be false
	cancel   // Hybrid.Cancel
)

func newHybrid(t *testing.T, hk Hotkey) *Hybrid {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHybrid(ctx, hk, threshold)
}

func play(t *testing.T, fk *Fake, hy *Hybrid, steps []step) {
	t.Helper()
	for i, s := range steps {
		switch s {
		case press:
			fk.SimKeydown()
		case release:
			fk.SimKeyup()
		case hold:
			time.Sleep(threshold + 20*time.Millisecond)
		case pause:
			time.Sleep(10 * time.Millisecond)
		case started:
			select {
			case <-hy.Start():
			case <-time.After(time.Second):
				t.Fatalf("step %d: timed out waiting for start", i)
			}
		case stopped:
			select {
			case <-hy.StopChan():
			case <-time.After(time.Second):
				t.Fatalf("step %d: timed out waiting for stop", i)
			}
		case noStop:
			select {
			case <-hy.StopChan():
				t.Fatalf("step %d: unexpected stop", i)
			case <-time.After(30 * time.Millisecond):
			}
		case isToggle:
			if !hy.IsToggle() {
				t.Errorf("step %d: want toggle recording", i)
			}
		case isPTT:
			if hy.IsToggle() {
				t.Errorf("step %d: want push-to-talk", i)
			}
		case cancel:
			hy.Cancel()
		}
	}
}

func TestHybrid(t *testing.T) {
	tests := []struct {
		name  string
		steps []step
	}{
		{"long press is push-to-talk", []step{
			press, started, hold, isPTT, release, stopped,
		}},
		{"short tap toggles", []step{
			press, started, release, pause, isToggle, noStop,
			press, release, stopped, isPTT,
		}},
		{"multiple cycles", []step{
			press, started, hold, release, stopped,
			press, started, release, pause, press, release, stopped,
			press, started, hold, release, stopped,
		}},
		{"cancel returns to idle", []step{
			press, started, release, pause, isToggle,
			cancel, pause, isPTT,
			press, started, release, pause, isToggle,
		}},
		{"cancel while idle is harmless", []step{
			cancel, pause, press, started, hold, release, stopped,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fk := NewFake()
			play(t, fk, newHybrid(t, fk), tt.steps)
		})
	}
}

func TestHybridStopsWithContext(t *testing.T) {
	fk := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	hy := NewHybrid(ctx, fk, threshold)
	cancel()
	time.Sleep(10 * time.Millisecond)

	fk.SimKeydown()
	select {
	case <-hy.Start():
		t.Fatal("start after the context was cancelled")
	case <-time.After(50 * time.Millisecond):
	}
}
