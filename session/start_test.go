package session

import (
	"errors"
	"testing"
	"time"

	"murmur/coordinator"
)

func TestEvaluateStartPriority(t *testing.T) {
	tests := []struct {
		name string
		in   StartInput
		want StartDecision
	}{
		{"ready", StartInput{}, StartReady},
		{"already recording wins", StartInput{IsRecording: true, DeferredByModel: true, NeedsMicrophone: true, NeedsAccessibility: true}, StartAlreadyRecording},
		{"model before permissions", StartInput{DeferredByModel: true, NeedsMicrophone: true}, StartDeferredByModel},
		{"microphone before accessibility", StartInput{NeedsMicrophone: true, NeedsAccessibility: true}, StartBlockedMicrophone},
		{"accessibility", StartInput{NeedsAccessibility: true}, StartBlockedAccessibility},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateStart(tt.in); got != tt.want {
				t.Errorf("EvaluateStart(%+v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestStartDecisionErr(t *testing.T) {
	if err := StartBlockedMicrophone.Err(); !errors.Is(err, ErrMicrophonePermission) {
		t.Errorf("microphone err = %v", err)
	}
	if err := StartBlockedAccessibility.Err(); !errors.Is(err, ErrAccessibilityPermission) {
		t.Errorf("accessibility err = %v", err)
	}
	if err := StartDeferredByModel.Err(); err != nil {
		t.Errorf("deferred err = %v, want nil", err)
	}
	if err := StartReady.Err(); err != nil {
		t.Errorf("ready err = %v, want nil", err)
	}
}

func TestEvaluateStop(t *testing.T) {
	var rec Recording
	if d := EvaluateStop(&rec, coordinator.OnRelease); d != StopNoop {
		t.Fatalf("stop while idle = %s, want noop", d)
	}

	rec.Begin(time.Now())
	if d := EvaluateStop(&rec, coordinator.OnRelease); d != StopFinalize {
		t.Fatalf("on-release stop = %s, want finalize", d)
	}
	if rec.Active() {
		t.Fatal("recording still active after stop")
	}
	if _, ok := rec.StartedAt(); ok {
		t.Fatal("start timestamp not cleared")
	}

	rec.Begin(time.Now())
	if d := EvaluateStop(&rec, coordinator.Streaming); d != StopStreaming {
		t.Fatalf("streaming stop = %s, want streaming", d)
	}
}
