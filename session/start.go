// Package session gates recording start and stop against model readiness
// and permissions, and owns the model load/warm-up/retry lifecycle.
package session

import (
	"errors"
	"time"

	"murmur/coordinator"
)

var (
	ErrMicrophonePermission    = errors.New("microphone permission missing")
	ErrAccessibilityPermission = errors.New("accessibility permission missing")
	ErrAlreadyRecording        = errors.New("already recording")
)

type StartInput struct {
	IsRecording        bool
	DeferredByModel    bool
	NeedsMicrophone    bool
	NeedsAccessibility bool
}

type StartDecision int

const (
	StartReady StartDecision = iota
	StartAlreadyRecording
	StartDeferredByModel
	StartBlockedMicrophone
	StartBlockedAccessibility
)

func (d StartDecision) String() string {
	switch d {
	case StartAlreadyRecording:
		return "already_recording"
	case StartDeferredByModel:
		return "deferred_by_model"
	case StartBlockedMicrophone:
		return "blocked_microphone"
	case StartBlockedAccessibility:
		return "blocked_accessibility"
	}
	return "ready"
}

// Err maps a blocking decision to its user-actionable error. Ready and
// deferred starts return nil.
func (d StartDecision) Err() error {
	switch d {
	case StartAlreadyRecording:
		return ErrAlreadyRecording
	case StartBlockedMicrophone:
		return ErrMicrophonePermission
	case StartBlockedAccessibility:
		return ErrAccessibilityPermission
	}
	return nil
}

// EvaluateStart checks, in order: recording in progress, model readiness,
// microphone permission, accessibility permission.
func EvaluateStart(in StartInput) StartDecision {
	switch {
	case in.IsRecording:
		return StartAlreadyRecording
	case in.DeferredByModel:
		return StartDeferredByModel
	case in.NeedsMicrophone:
		return StartBlockedMicrophone
	case in.NeedsAccessibility:
		return StartBlockedAccessibility
	}
	return StartReady
}

// Recording is the optional recording-start timestamp. The zero value means
// not recording.
type Recording struct {
	startedAt time.Time
	active    bool
}

func (r *Recording) Begin(now time.Time) {
	r.startedAt = now
	r.active = true
}

func (r *Recording) Active() bool { return r.active }

func (r *Recording) StartedAt() (time.Time, bool) {
	return r.startedAt, r.active
}

func (r *Recording) clear() {
	r.startedAt = time.Time{}
	r.active = false
}

type StopDecision int

const (
	StopNoop StopDecision = iota
	// StopStreaming leaves the already typed text in place.
	StopStreaming
	// StopFinalize re-decodes the session tail and injects once.
	StopFinalize
)

func (d StopDecision) String() string {
	switch d {
	case StopStreaming:
		return "streaming"
	case StopFinalize:
		return "finalize"
	}
	return "noop"
}

// EvaluateStop clears rec and reports how the stopped session must be
// finished.
func EvaluateStop(rec *Recording, mode coordinator.Mode) StopDecision {
	if !rec.Active() {
		return StopNoop
	}
	rec.clear()
	if mode == coordinator.OnRelease {
		return StopFinalize
	}
	return StopStreaming
}
