// Package chunker buffers live audio into bounded decode units. At most one
// decode is in flight; audio keeps accumulating while it runs.
package chunker

import (
	"context"
	"sync"
	"time"
)

type Config struct {
	SampleRate     int
	ChunkDuration  time.Duration
	Overlap        time.Duration
	MinFinalize    time.Duration
	FinalizeWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     16000,
		ChunkDuration:  4 * time.Second,
		Overlap:        500 * time.Millisecond,
		MinFinalize:    150 * time.Millisecond,
		FinalizeWindow: 25 * time.Second,
	}
}

func (c Config) samples(d time.Duration) int {
	return int(int64(c.SampleRate) * int64(d) / int64(time.Second))
}

// ProcessFunc decodes one chunk. It runs on its own goroutine and the
// accumulator will not dispatch another chunk until it returns.
type ProcessFunc func(samples []float32)

type Accumulator struct {
	cfg     Config
	process ProcessFunc

	chunkSize   int
	overlapSize int
	minSize     int
	windowSize  int

	mu           sync.Mutex
	pending      []float32
	session      []float32
	processing   bool
	shuttingDown bool
	done         chan struct{} // closed when the in-flight decode returns
}

func New(cfg Config, process ProcessFunc) *Accumulator {
	return &Accumulator{
		cfg:         cfg,
		process:     process,
		chunkSize:   cfg.samples(cfg.ChunkDuration),
		overlapSize: cfg.samples(cfg.Overlap),
		minSize:     cfg.samples(cfg.MinFinalize),
		windowSize:  cfg.samples(cfg.FinalizeWindow),
	}
}

// Feed appends captured samples and dispatches a decode once a full chunk
// is buffered. It never blocks on decoding.
func (a *Accumulator) Feed(samples []float32) {
	if len(samples) == 0 {
		return
	}
	a.mu.Lock()
	a.pending = append(a.pending, samples...)
	a.session = append(a.session, samples...)
	if len(a.pending) < a.chunkSize || a.processing || a.shuttingDown {
		a.mu.Unlock()
		return
	}
	chunk := a.pending
	seed := a.overlapSize
	if seed > len(chunk) {
		seed = len(chunk)
	}
	a.pending = append(make([]float32, 0, a.chunkSize+seed), chunk[len(chunk)-seed:]...)
	a.processing = true
	done := make(chan struct{})
	a.done = done
	a.mu.Unlock()

	go a.run(chunk, done)
}

func (a *Accumulator) run(chunk []float32, done chan struct{}) {
	defer func() {
		a.mu.Lock()
		a.processing = false
		a.done = nil
		a.mu.Unlock()
		close(done)
	}()
	a.process(chunk)
}

// PrepareForFinalize stops automatic dispatch. Samples still land in the
// session buffer so Finalize sees the whole recording.
func (a *Accumulator) PrepareForFinalize() {
	a.mu.Lock()
	a.shuttingDown = true
	a.mu.Unlock()
}

// FlushProcessing waits for the in-flight decode, if any.
func (a *Accumulator) FlushProcessing(ctx context.Context) error {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize returns the tail of the session audio, bounded by the finalize
// window, for a last high-fidelity decode. It reports false when the
// recording is too short to contain speech.
func (a *Accumulator) Finalize() ([]float32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tail := a.session
	if len(tail) > a.windowSize {
		tail = tail[len(tail)-a.windowSize:]
	}
	if len(tail) < a.minSize || len(tail) == 0 {
		return nil, false
	}
	out := make([]float32, len(tail))
	copy(out, tail)
	return out, true
}

// FlushPending drains whatever has not been dispatched yet. Streaming mode
// uses it on stop so the last words are not lost.
func (a *Accumulator) FlushPending() ([]float32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rest := a.pending
	a.pending = nil
	if len(rest) < a.minSize || len(rest) == 0 {
		return nil, false
	}
	return rest, true
}

// Reset clears all buffers for a new recording session.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.pending = nil
	a.session = nil
	a.shuttingDown = false
	a.mu.Unlock()
}

func (a *Accumulator) Processing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

// SessionDuration is the length of audio fed since the last Reset.
func (a *Accumulator) SessionDuration() time.Duration {
	a.mu.Lock()
	n := len(a.session)
	a.mu.Unlock()
	if a.cfg.SampleRate == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(a.cfg.SampleRate)
}
