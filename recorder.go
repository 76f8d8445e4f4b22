package main

import (
	"context"
	"fmt"
	"time"

	"murmur/audio"
	"murmur/dictation"
	"murmur/log"
)

// captureRecorder runs the capture device for the length of an engine
// session.
type captureRecorder struct {
	engine   *dictation.Engine
	capture  audio.CaptureDevice
	onResult func(dictation.Result)
}

func (r *captureRecorder) StartRecording(ctx context.Context, startedAt time.Time) error {
	if err := r.engine.StartRecording(ctx, startedAt); err != nil {
		return err
	}
	r.capture.SetCallback(func(samples []float32) {
		r.engine.Feed(samples, audio.Level(samples))
	})
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		if _, serr := r.engine.Stop(ctx, false); serr != nil {
			log.Warnf("abort session: %v", serr)
		}
		return fmt.Errorf("start capture: %w", err)
	}
	log.Info("recording_device: " + r.capture.DeviceName())
	return nil
}

// StopRecording keeps capturing through the engine's stop grace so the
// last frames are not cut off.
func (r *captureRecorder) StopRecording(ctx context.Context, finalize bool) error {
	defer func() {
		r.capture.Stop()
		r.capture.ClearCallback()
	}()
	res, err := r.engine.Stop(ctx, finalize)
	if err != nil {
		return err
	}
	if r.onResult != nil {
		r.onResult(res)
	}
	return nil
}
