package hotkey

import (
	"context"
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// StartEvent asks for a new recording. Mode is a first guess; the press
// may still turn into push-to-talk, see IsToggle.
type StartEvent struct {
	Mode Mode
}

// Hybrid gives one key combination both behaviours: hold to talk, or tap
// to start and tap again to stop.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	cancel  chan struct{}
	toggle  atomic.Bool
}

// NewHybrid watches hk until ctx is done. A press held longer than
// longPress is push-to-talk.
func NewHybrid(ctx context.Context, hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
		cancel:  make(chan struct{}, 1),
	}
	go h.run(ctx, hk, longPress)
	return h
}

func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan is signalled when the recording should end, in either mode.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording is hands-free.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

// Cancel returns a toggled recording to idle after it was stopped by other
// means, so the next tap starts instead of stops.
func (h *Hybrid) Cancel() {
	select {
	case h.cancel <- struct{}{}:
	default:
	}
}

type hybridState int

const (
	stIdle hybridState = iota
	stToggleRecording
)

func (h *Hybrid) signalStop() {
	h.toggle.Store(false)
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}

func (h *Hybrid) run(ctx context.Context, hk Hotkey, longPress time.Duration) {
	state := stIdle
	for {
		switch state {
		case stIdle:
			select {
			case <-ctx.Done():
				return
			case <-h.cancel:
				continue
			case <-hk.Keydown():
			}
			// Start right away; the hold duration only decides how it stops.
			h.toggle.Store(true)
			select {
			case h.startCh <- StartEvent{Mode: ModeToggle}:
			case <-ctx.Done():
				return
			}
			timer := time.NewTimer(longPress)
			select {
			case <-timer.C:
				h.toggle.Store(false)
				select {
				case <-hk.Keyup():
				case <-ctx.Done():
					return
				}
				h.signalStop()
			case <-hk.Keyup():
				timer.Stop()
				state = stToggleRecording
			case <-ctx.Done():
				timer.Stop()
				return
			}
		case stToggleRecording:
			select {
			case <-ctx.Done():
				return
			case <-h.cancel:
				h.toggle.Store(false)
				state = stIdle
				continue
			case <-hk.Keydown():
			}
			select {
			case <-hk.Keyup():
			case <-ctx.Done():
				return
			}
			h.signalStop()
			state = stIdle
		}
	}
}
