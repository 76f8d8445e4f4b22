package session

import (
	"context"
	"sync"
	"time"

	"murmur/log"
	"murmur/observe"
	"murmur/transcriber"
)

// Loader is the model-loading half of a transcriber.
type Loader interface {
	Name() string
	LoadModel(ctx context.Context, modelID, language string, onPhase func(transcriber.Phase)) error
}

type LifecycleConfig struct {
	ModelID     string
	Language    string
	LoadTimeout time.Duration
	RetryDelay  time.Duration
	// OnPhase receives every phase change. It is called without locks held.
	OnPhase func(transcriber.Phase)
	Metrics *observe.Metrics
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		LoadTimeout: 2 * time.Minute,
		RetryDelay:  3 * time.Second,
	}
}

type stopper interface {
	Stop() bool
}

// ModelLifecycle owns the model phase. Phase changes only come from load
// attempts; ready and error stay until the next attempt.
type ModelLifecycle struct {
	cfg    LifecycleConfig
	loader Loader

	// afterFunc schedules the warm-up retry.
	afterFunc func(time.Duration, func()) stopper

	mu          sync.Mutex
	phase       transcriber.Phase
	loading     bool
	attempt     int
	queuedStart bool
	retry       stopper
	isRecording func() bool
	onStart     func()

	wg sync.WaitGroup
}

func NewModelLifecycle(loader Loader, cfg LifecycleConfig) *ModelLifecycle {
	def := DefaultLifecycleConfig()
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = def.LoadTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &ModelLifecycle{
		cfg:    cfg,
		loader: loader,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		phase:       transcriber.Idle(),
		isRecording: func() bool { return false },
	}
}

// SetHooks connects the lifecycle to the recording side: isRecording gates
// warm-ups and queued starts, onQueuedStart fires a deferred start.
func (l *ModelLifecycle) SetHooks(isRecording func() bool, onQueuedStart func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if isRecording != nil {
		l.isRecording = isRecording
	}
	l.onStart = onQueuedStart
}

func (l *ModelLifecycle) Phase() transcriber.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

func (l *ModelLifecycle) Ready() bool {
	return l.Phase().Kind == transcriber.PhaseReady
}

func (l *ModelLifecycle) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Load runs one load attempt bounded by the configured timeout. A load
// already in flight makes Load return nil immediately. A failure schedules
// one warm-up retry.
func (l *ModelLifecycle) Load(ctx context.Context) error {
	return l.run(ctx, false)
}

func (l *ModelLifecycle) run(ctx context.Context, fromRetry bool) error {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.attempt++
	attempt := l.attempt
	l.mu.Unlock()

	err := l.load(ctx, attempt)

	l.mu.Lock()
	l.loading = false
	l.mu.Unlock()

	if err != nil {
		if !fromRetry {
			l.ScheduleWarmupRetryIfNeeded(ctx)
		}
		return err
	}
	l.ConsumeQueuedRecordingStartIfNeeded()
	return nil
}

func (l *ModelLifecycle) load(ctx context.Context, attempt int) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() {
		errc <- l.loader.LoadModel(ctx, l.cfg.ModelID, l.cfg.Language, func(p transcriber.Phase) {
			l.setPhase(attempt, p)
		})
	}()

	var err error
	select {
	case err = <-errc:
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			err = transcriber.ErrLoadTimeout
		}
	case <-ctx.Done():
		err = transcriber.ErrLoadTimeout
		if ctx.Err() == context.Canceled {
			err = ctx.Err()
		}
	}

	if l.cfg.Metrics != nil {
		l.cfg.Metrics.RecordModelLoad(context.Background(), l.loader.Name(), time.Since(start), err)
	}
	if err != nil {
		log.Errorf("model load failed: %v", err)
		failed := transcriber.Failed(err)
		// An abandoned load may still report phases; bumping the attempt
		// makes setPhase ignore them.
		l.mu.Lock()
		changed := l.attempt == attempt && l.phase != failed
		if l.attempt == attempt {
			l.phase = failed
			l.attempt++
		}
		l.mu.Unlock()
		if changed {
			log.ModelPhase(failed.String())
			if l.cfg.OnPhase != nil {
				l.cfg.OnPhase(failed)
			}
		}
		return err
	}
	l.setPhase(attempt, transcriber.Ready())
	return nil
}

func (l *ModelLifecycle) setPhase(attempt int, p transcriber.Phase) {
	l.mu.Lock()
	if attempt != l.attempt || l.phase == p {
		l.mu.Unlock()
		return
	}
	l.phase = p
	l.mu.Unlock()
	if l.cfg.OnPhase != nil {
		l.cfg.OnPhase(p)
	}
}

// ShouldDeferRecordingStart reports whether the model is not ready. When
// true, the start intent is queued until the model becomes ready.
func (l *ModelLifecycle) ShouldDeferRecordingStart() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase.Kind == transcriber.PhaseReady {
		return false
	}
	l.queuedStart = true
	return true
}

func (l *ModelLifecycle) HasQueuedStart() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queuedStart
}

func (l *ModelLifecycle) CancelQueuedStart() {
	l.mu.Lock()
	l.queuedStart = false
	l.mu.Unlock()
}

// ConsumeQueuedRecordingStartIfNeeded fires the queued start once the model
// is ready and nothing is recording.
func (l *ModelLifecycle) ConsumeQueuedRecordingStartIfNeeded() bool {
	l.mu.Lock()
	if !l.queuedStart || l.phase.Kind != transcriber.PhaseReady {
		l.mu.Unlock()
		return false
	}
	isRecording := l.isRecording
	l.mu.Unlock()

	if isRecording() {
		return false
	}

	l.mu.Lock()
	fire := l.queuedStart
	l.queuedStart = false
	onStart := l.onStart
	l.mu.Unlock()

	if !fire {
		return false
	}
	log.Info("queued_start_consumed")
	if onStart != nil {
		onStart()
	}
	return true
}

// EnsureModelWarmInBackground starts a background load unless recording,
// already loading or already ready.
func (l *ModelLifecycle) EnsureModelWarmInBackground(ctx context.Context) bool {
	return l.background(ctx, false)
}

func (l *ModelLifecycle) background(ctx context.Context, fromRetry bool) bool {
	l.mu.Lock()
	isRecording := l.isRecording
	busy := l.loading || l.phase.Kind == transcriber.PhaseReady
	l.mu.Unlock()
	if busy || isRecording() {
		return false
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx, fromRetry)
	}()
	return true
}

// ScheduleWarmupRetryIfNeeded schedules a single delayed retry after a
// failed load, unless recording or a retry is already pending. A failed
// retry does not schedule another one.
func (l *ModelLifecycle) ScheduleWarmupRetryIfNeeded(ctx context.Context) bool {
	l.mu.Lock()
	if l.retry != nil || l.phase.Kind != transcriber.PhaseError {
		l.mu.Unlock()
		return false
	}
	isRecording := l.isRecording
	l.mu.Unlock()
	if isRecording() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retry != nil {
		return false
	}
	log.Infof("model warm-up retry in %s", l.cfg.RetryDelay)
	l.retry = l.afterFunc(l.cfg.RetryDelay, func() {
		l.mu.Lock()
		l.retry = nil
		l.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		l.background(ctx, true)
	})
	return true
}

func (l *ModelLifecycle) RetryScheduled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retry != nil
}

// Close stops a pending retry and waits for background loads.
func (l *ModelLifecycle) Close() {
	l.mu.Lock()
	if l.retry != nil {
		l.retry.Stop()
		l.retry = nil
	}
	l.mu.Unlock()
	l.wg.Wait()
}
