package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"murmur/coordinator"
	"murmur/log"
)

// Permissions reports whether the capture and injection permissions are
// currently granted.
type Permissions interface {
	Microphone() bool
	Accessibility() bool
}

// Recorder is the capture side started and stopped by the controller.
type Recorder interface {
	StartRecording(ctx context.Context, startedAt time.Time) error
	StopRecording(ctx context.Context, finalize bool) error
}

// Controller gates recording start and stop. The recording timestamp is
// the only state it owns; the model phase belongs to the lifecycle.
type Controller struct {
	mode     coordinator.Mode
	models   *ModelLifecycle
	perms    Permissions
	recorder Recorder
	now      func() time.Time

	mu  sync.Mutex
	rec Recording
	// ctx is the context of the last start request, reused for a queued
	// start fired by the lifecycle.
	ctx context.Context
}

func NewController(mode coordinator.Mode, models *ModelLifecycle, perms Permissions, recorder Recorder) *Controller {
	c := &Controller{
		mode:     mode,
		models:   models,
		perms:    perms,
		recorder: recorder,
		now:      time.Now,
		ctx:      context.Background(),
	}
	models.SetHooks(c.IsRecording, c.startQueued)
	return c
}

func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Active()
}

func (c *Controller) StartedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.StartedAt()
}

func (c *Controller) input() StartInput {
	return StartInput{
		IsRecording:        c.IsRecording(),
		DeferredByModel:    !c.models.Ready(),
		NeedsMicrophone:    !c.perms.Microphone(),
		NeedsAccessibility: !c.perms.Accessibility(),
	}
}

// RequestStart evaluates the start gates. A deferred start is queued and a
// background load kicked off; it fires once the model is ready. Permissions
// are checked again right before the recorder starts.
func (c *Controller) RequestStart(ctx context.Context) (StartDecision, error) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	d := EvaluateStart(c.input())
	switch d {
	case StartDeferredByModel:
		if c.models.ShouldDeferRecordingStart() {
			log.Infof("recording start deferred: model %s", c.models.Phase())
			c.models.EnsureModelWarmInBackground(ctx)
			return d, nil
		}
		// Became ready between the two checks.
		d = EvaluateStart(c.input())
		if d != StartReady {
			return d, d.Err()
		}
	case StartReady:
	default:
		log.Warnf("recording start rejected: %s", d)
		return d, d.Err()
	}

	if d = EvaluateStart(c.input()); d != StartReady {
		log.Warnf("recording start rejected on re-check: %s", d)
		return d, d.Err()
	}

	c.mu.Lock()
	if c.rec.Active() {
		c.mu.Unlock()
		return StartAlreadyRecording, ErrAlreadyRecording
	}
	now := c.now()
	c.rec.Begin(now)
	c.mu.Unlock()

	if err := c.recorder.StartRecording(ctx, now); err != nil {
		c.mu.Lock()
		c.rec.clear()
		c.mu.Unlock()
		return d, fmt.Errorf("start recording: %w", err)
	}
	return StartReady, nil
}

func (c *Controller) startQueued() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if _, err := c.RequestStart(ctx); err != nil {
		log.Errorf("queued start: %v", err)
	}
}

// RequestStop ends the recording, if any. A start still queued behind the
// model load is dropped. A model that failed while recording gets its
// warm-up retry now.
func (c *Controller) RequestStop(ctx context.Context) (StopDecision, error) {
	c.models.CancelQueuedStart()

	c.mu.Lock()
	d := EvaluateStop(&c.rec, c.mode)
	c.mu.Unlock()

	if d == StopNoop {
		return d, nil
	}
	err := c.recorder.StopRecording(ctx, d == StopFinalize)
	c.models.ScheduleWarmupRetryIfNeeded(ctx)
	if err != nil {
		return d, fmt.Errorf("stop recording: %w", err)
	}
	return d, nil
}
