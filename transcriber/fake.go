package transcriber

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeResult is one scripted Decode outcome.
type FakeResult struct {
	Partials []string
	Text     string
	Err      error
	Delay    time.Duration
}

// Fake replays scripted results in order. Once the script runs out it
// returns Fallback. It records every decoded chunk length.
type Fake struct {
	Fallback string
	LoadErr  error
	// LoadDelay blocks LoadModel, honouring the context.
	LoadDelay time.Duration

	mu      sync.Mutex
	script  []FakeResult
	loads   int
	decoded []int
	langs   []string
}

func NewFake(results ...FakeResult) *Fake {
	return &Fake{script: results}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) LoadModel(ctx context.Context, _, _ string, onPhase func(Phase)) error {
	f.mu.Lock()
	f.loads++
	err, delay := f.LoadErr, f.LoadDelay
	f.mu.Unlock()

	report := phaseReporter(onPhase)
	report(Loading("fake"))
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			report(Failed(ctx.Err()))
			return ctx.Err()
		}
	}
	if err != nil {
		report(Failed(err))
		return err
	}
	report(Ready())
	return nil
}

func (f *Fake) Decode(ctx context.Context, samples []float32, language string, onPartial func(string)) (string, error) {
	f.mu.Lock()
	f.decoded = append(f.decoded, len(samples))
	f.langs = append(f.langs, language)
	res := FakeResult{Text: f.Fallback}
	if len(f.script) > 0 {
		res = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	for _, p := range res.Partials {
		if onPartial != nil {
			onPartial(p)
		}
	}
	if res.Delay > 0 {
		select {
		case <-time.After(res.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if res.Err != nil {
		return "", res.Err
	}
	return strings.TrimSpace(res.Text), nil
}

// Push appends results to the script.
func (f *Fake) Push(results ...FakeResult) {
	f.mu.Lock()
	f.script = append(f.script, results...)
	f.mu.Unlock()
}

func (f *Fake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// Decoded returns the sample count of every Decode call so far.
func (f *Fake) Decoded() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.decoded...)
}

func (f *Fake) Languages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.langs...)
}

func (f *Fake) SetLoadErr(err error) {
	f.mu.Lock()
	f.LoadErr = err
	f.mu.Unlock()
}
