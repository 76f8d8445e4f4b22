package chunker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Small numbers keep the arithmetic readable: 10 samples per second.
func testConfig() Config {
	return Config{
		SampleRate:     10,
		ChunkDuration:  4 * time.Second,
		Overlap:        time.Second,
		MinFinalize:    200 * time.Millisecond,
		FinalizeWindow: 5 * time.Second,
	}
}

func ramp(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

type recorder struct {
	mu      sync.Mutex
	chunks  [][]float32
	release chan struct{}
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   chan struct{}
}

func newRecorder(block bool) *recorder {
	r := &recorder{calls: make(chan struct{}, 16)}
	if block {
		r.release = make(chan struct{})
	}
	return r
}

func (r *recorder) process(samples []float32) {
	n := r.active.Add(1)
	if n > r.maxSeen.Load() {
		r.maxSeen.Store(n)
	}
	r.mu.Lock()
	r.chunks = append(r.chunks, samples)
	r.mu.Unlock()
	r.calls <- struct{}{}
	if r.release != nil {
		<-r.release
	}
	r.active.Add(-1)
}

func waitCall(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("process was not called")
	}
}

func TestFeedDispatchesWithOverlap(t *testing.T) {
	r := newRecorder(false)
	a := New(testConfig(), r.process)

	a.Feed(ramp(0, 30))
	if a.Processing() {
		t.Fatal("dispatched before a full chunk")
	}
	a.Feed(ramp(30, 10))
	waitCall(t, r)
	if err := a.FlushProcessing(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	first := r.chunks[0]
	r.mu.Unlock()
	if len(first) != 40 || first[0] != 0 || first[39] != 39 {
		t.Fatalf("first chunk = %d samples [%v..%v]", len(first), first[0], first[len(first)-1])
	}

	// The overlap seeds the next chunk: 10 retained + 30 new.
	a.Feed(ramp(40, 30))
	waitCall(t, r)
	a.FlushProcessing(context.Background())
	r.mu.Lock()
	second := r.chunks[1]
	r.mu.Unlock()
	if len(second) != 40 || second[0] != 30 {
		t.Fatalf("second chunk = %d samples starting at %v", len(second), second[0])
	}
}

func TestSingleDecodeInFlight(t *testing.T) {
	r := newRecorder(true)
	a := New(testConfig(), r.process)

	a.Feed(ramp(0, 40))
	waitCall(t, r)
	// Keep feeding while the first decode is blocked.
	for i := 0; i < 5; i++ {
		a.Feed(ramp(40+i*40, 40))
	}
	select {
	case <-r.calls:
		t.Fatal("second decode dispatched while first in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(r.release)
	a.FlushProcessing(context.Background())

	// Buffered audio goes out as one chunk on the next feed.
	a.Feed(ramp(1000, 1))
	waitCall(t, r)
	a.FlushProcessing(context.Background())
	if r.maxSeen.Load() != 1 {
		t.Errorf("max concurrent decodes = %d", r.maxSeen.Load())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if got := len(r.chunks[1]); got != 10+200+1 {
		t.Errorf("second chunk = %d samples; want 211", got)
	}
}

func TestFlushProcessingIdle(t *testing.T) {
	a := New(testConfig(), func([]float32) {})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.FlushProcessing(ctx); err != nil {
		t.Fatalf("FlushProcessing on idle accumulator: %v", err)
	}
}

func TestFlushProcessingContext(t *testing.T) {
	r := newRecorder(true)
	defer close(r.release)
	a := New(testConfig(), r.process)
	a.Feed(ramp(0, 40))
	waitCall(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.FlushProcessing(ctx); err == nil {
		t.Fatal("expected context error while decode is blocked")
	}
}

func TestPrepareForFinalizeSuppressesDispatch(t *testing.T) {
	r := newRecorder(false)
	a := New(testConfig(), r.process)
	a.PrepareForFinalize()
	a.Feed(ramp(0, 100))
	select {
	case <-r.calls:
		t.Fatal("dispatched while shutting down")
	case <-time.After(30 * time.Millisecond):
	}
	if a.SessionDuration() != 10*time.Second {
		t.Errorf("session duration = %v", a.SessionDuration())
	}
}

func TestFinalize(t *testing.T) {
	a := New(testConfig(), func([]float32) {})
	if _, ok := a.Finalize(); ok {
		t.Fatal("Finalize on empty session returned audio")
	}

	a.PrepareForFinalize()
	a.Feed(ramp(0, 1))
	if _, ok := a.Finalize(); ok {
		t.Fatal("Finalize returned audio shorter than the minimum")
	}

	a.Feed(ramp(1, 79))
	tail, ok := a.Finalize()
	if !ok {
		t.Fatal("Finalize returned nothing")
	}
	if len(tail) != 50 || tail[0] != 30 || tail[49] != 79 {
		t.Fatalf("tail = %d samples [%v..%v]; want last 50", len(tail), tail[0], tail[len(tail)-1])
	}
}

func TestFlushPendingAndReset(t *testing.T) {
	a := New(testConfig(), func([]float32) {})
	a.PrepareForFinalize()
	a.Feed(ramp(0, 25))
	rest, ok := a.FlushPending()
	if !ok || len(rest) != 25 {
		t.Fatalf("FlushPending = %d, %v", len(rest), ok)
	}
	if _, ok := a.FlushPending(); ok {
		t.Fatal("second FlushPending returned audio")
	}

	a.Reset()
	if a.SessionDuration() != 0 {
		t.Fatal("Reset kept session audio")
	}
	if _, ok := a.Finalize(); ok {
		t.Fatal("Finalize after Reset returned audio")
	}
}
