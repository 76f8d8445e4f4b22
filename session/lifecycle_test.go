package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"murmur/transcriber"
)

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type timers struct {
	mu  sync.Mutex
	all []*fakeTimer
}

func (ts *timers) afterFunc(_ time.Duration, f func()) stopper {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &fakeTimer{fn: f}
	ts.all = append(ts.all, t)
	return t
}

func (ts *timers) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.all)
}

func (ts *timers) fire(i int) {
	ts.mu.Lock()
	t := ts.all[i]
	ts.mu.Unlock()
	t.fn()
}

type phaseLog struct {
	mu     sync.Mutex
	phases []transcriber.Phase
}

func (p *phaseLog) add(ph transcriber.Phase) {
	p.mu.Lock()
	p.phases = append(p.phases, ph)
	p.mu.Unlock()
}

func (p *phaseLog) kinds() []transcriber.PhaseKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []transcriber.PhaseKind
	for _, ph := range p.phases {
		out = append(out, ph.Kind)
	}
	return out
}

func newLifecycle(loader Loader, cfg LifecycleConfig) (*ModelLifecycle, *timers) {
	l := NewModelLifecycle(loader, cfg)
	ts := &timers{}
	l.afterFunc = ts.afterFunc
	return l, ts
}

func TestLoadReportsPhases(t *testing.T) {
	var pl phaseLog
	l, _ := newLifecycle(transcriber.NewFake(), LifecycleConfig{OnPhase: pl.add})

	if got := l.Phase().Kind; got != transcriber.PhaseIdle {
		t.Fatalf("initial phase = %s, want idle", got)
	}
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !l.Ready() {
		t.Fatalf("phase = %s, want ready", l.Phase())
	}
	kinds := pl.kinds()
	if len(kinds) != 2 || kinds[0] != transcriber.PhaseLoading || kinds[1] != transcriber.PhaseReady {
		t.Errorf("phases = %v, want [loading ready]", kinds)
	}
}

func TestLoadTimeout(t *testing.T) {
	fake := transcriber.NewFake()
	fake.LoadDelay = time.Second
	l, ts := newLifecycle(fake, LifecycleConfig{LoadTimeout: 20 * time.Millisecond})

	err := l.Load(context.Background())
	if !errors.Is(err, transcriber.ErrLoadTimeout) {
		t.Fatalf("Load err = %v, want ErrLoadTimeout", err)
	}
	ph := l.Phase()
	if ph.Kind != transcriber.PhaseError || ph.Message != transcriber.ErrLoadTimeout.Error() {
		t.Errorf("phase = %s, want error(%s)", ph, transcriber.ErrLoadTimeout)
	}
	if ts.count() != 1 {
		t.Errorf("retries scheduled = %d, want 1", ts.count())
	}
}

func TestWarmupRetryRunsOnce(t *testing.T) {
	fake := transcriber.NewFake()
	fake.LoadErr = errors.New("offline")
	l, ts := newLifecycle(fake, LifecycleConfig{})
	ctx := context.Background()

	if err := l.Load(ctx); err == nil {
		t.Fatal("Load succeeded, want error")
	}
	if !l.RetryScheduled() {
		t.Fatal("no retry scheduled after failure")
	}
	if l.ScheduleWarmupRetryIfNeeded(ctx) {
		t.Fatal("second retry scheduled while one is pending")
	}

	ts.fire(0)
	l.Close()

	if fake.Loads() != 2 {
		t.Fatalf("loads = %d, want 2", fake.Loads())
	}
	if l.RetryScheduled() {
		t.Error("retry handle not cleared after firing")
	}
	if ts.count() != 1 {
		t.Errorf("failed retry scheduled another retry (%d timers)", ts.count())
	}
}

func TestWarmupRetryRecovers(t *testing.T) {
	fake := transcriber.NewFake()
	fake.LoadErr = errors.New("offline")
	l, ts := newLifecycle(fake, LifecycleConfig{})

	l.Load(context.Background())
	fake.SetLoadErr(nil)
	ts.fire(0)
	l.Close()

	if !l.Ready() {
		t.Fatalf("phase after retry = %s, want ready", l.Phase())
	}
}

func TestNoRetryWhileRecording(t *testing.T) {
	fake := transcriber.NewFake()
	fake.LoadErr = errors.New("offline")
	l, ts := newLifecycle(fake, LifecycleConfig{})
	l.SetHooks(func() bool { return true }, nil)

	l.Load(context.Background())
	if ts.count() != 0 {
		t.Fatalf("retry scheduled while recording")
	}
}

func TestQueuedStartFiresWhenReady(t *testing.T) {
	l, _ := newLifecycle(transcriber.NewFake(), LifecycleConfig{})
	var started atomic.Int32
	l.SetHooks(nil, func() { started.Add(1) })

	if !l.ShouldDeferRecordingStart() {
		t.Fatal("idle model did not defer the start")
	}
	if !l.HasQueuedStart() {
		t.Fatal("start not queued")
	}
	if l.ConsumeQueuedRecordingStartIfNeeded() {
		t.Fatal("queued start fired before the model was ready")
	}

	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if started.Load() != 1 {
		t.Fatalf("queued start fired %d times, want 1", started.Load())
	}
	if l.HasQueuedStart() {
		t.Error("queued start not consumed")
	}
	if l.ShouldDeferRecordingStart() {
		t.Error("ready model deferred the start")
	}
}

func TestQueuedStartWaitsForRecordingToEnd(t *testing.T) {
	l, _ := newLifecycle(transcriber.NewFake(), LifecycleConfig{})
	var recording atomic.Bool
	recording.Store(true)
	var started atomic.Int32
	l.SetHooks(recording.Load, func() { started.Add(1) })

	l.ShouldDeferRecordingStart()
	l.Load(context.Background())
	if started.Load() != 0 {
		t.Fatal("queued start fired during a recording")
	}

	recording.Store(false)
	if !l.ConsumeQueuedRecordingStartIfNeeded() {
		t.Fatal("queued start not consumed after the recording ended")
	}
}

func TestCancelQueuedStart(t *testing.T) {
	l, _ := newLifecycle(transcriber.NewFake(), LifecycleConfig{})
	var started atomic.Int32
	l.SetHooks(nil, func() { started.Add(1) })

	l.ShouldDeferRecordingStart()
	l.CancelQueuedStart()
	l.Load(context.Background())
	if started.Load() != 0 {
		t.Fatal("cancelled start fired")
	}
}

func TestEnsureModelWarmInBackground(t *testing.T) {
	fake := transcriber.NewFake()
	l, _ := newLifecycle(fake, LifecycleConfig{})

	var recording atomic.Bool
	recording.Store(true)
	l.SetHooks(recording.Load, nil)
	if l.EnsureModelWarmInBackground(context.Background()) {
		t.Fatal("warm-up started while recording")
	}

	recording.Store(false)
	if !l.EnsureModelWarmInBackground(context.Background()) {
		t.Fatal("warm-up not started")
	}
	l.Close()
	if !l.Ready() {
		t.Fatalf("phase = %s, want ready", l.Phase())
	}
	if l.EnsureModelWarmInBackground(context.Background()) {
		t.Fatal("warm-up started for a ready model")
	}
	if fake.Loads() != 1 {
		t.Errorf("loads = %d, want 1", fake.Loads())
	}
}

func TestEnsureModelWarmSkipsWhileLoading(t *testing.T) {
	fake := transcriber.NewFake()
	fake.LoadDelay = 50 * time.Millisecond
	l, _ := newLifecycle(fake, LifecycleConfig{})

	if !l.EnsureModelWarmInBackground(context.Background()) {
		t.Fatal("first warm-up not started")
	}
	deadline := time.Now().Add(time.Second)
	for !l.Loading() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.EnsureModelWarmInBackground(context.Background()) {
		t.Fatal("second warm-up started while loading")
	}
	l.Close()
	if fake.Loads() != 1 {
		t.Errorf("loads = %d, want 1", fake.Loads())
	}
}
