package session

import (
	"context"
	"time"
)

type SilenceConfig struct {
	// Threshold is the RMS level at or above which a tick counts as speech.
	Threshold float64
	Tick      time.Duration
	WarnAfter time.Duration
	// AutoStopAfter is the window that must be mostly silent before a
	// toggle recording is stopped.
	AutoStopAfter time.Duration
}

func DefaultSilenceConfig() SilenceConfig {
	return SilenceConfig{
		Threshold:     0.02,
		Tick:          100 * time.Millisecond,
		WarnAfter:     8 * time.Second,
		AutoStopAfter: 30 * time.Second,
	}
}

const (
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // hysteresis
)

type SilenceEvent int

const (
	SilenceNone SilenceEvent = iota
	SilenceWarn
	SilenceCleared
	SilenceRepeat
	SilenceAutoStop
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "no_voice_warning"
	case SilenceCleared:
		return "voice_cleared"
	case SilenceRepeat:
		return "silence_during_warning"
	case SilenceAutoStop:
		return "silence_auto_stop"
	}
	return "none"
}

// SilenceMonitor tracks the share of speech ticks over a sliding window.
// Repeats and auto-stop only apply to toggle recordings; push-to-talk
// recordings only warn.
type SilenceMonitor struct {
	threshold float64
	warnAt    int
	windowSz  int
	isToggle  func() bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastWarn    int
}

func NewSilenceMonitor(cfg SilenceConfig, isToggle func() bool) *SilenceMonitor {
	def := DefaultSilenceConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = def.WarnAfter
	}
	if cfg.AutoStopAfter < cfg.WarnAfter {
		cfg.AutoStopAfter = cfg.WarnAfter
	}
	if isToggle == nil {
		isToggle = func() bool { return false }
	}
	warnAt := max(int(cfg.WarnAfter/cfg.Tick), 1)
	windowSz := max(int(cfg.AutoStopAfter/cfg.Tick), warnAt)
	return &SilenceMonitor{
		threshold: cfg.Threshold,
		warnAt:    warnAt,
		windowSz:  windowSz,
		isToggle:  isToggle,
		window:    make([]bool, windowSz),
	}
}

func (m *SilenceMonitor) recentRatio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

// Tick records one interval's RMS level and returns the resulting event.
func (m *SilenceMonitor) Tick(level float64) SilenceEvent {
	speech := level >= m.threshold
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = speech
	if speech {
		m.speechCount++
	}
	m.ticks++

	r := m.recentRatio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceCleared
	}

	if !m.isToggle() {
		return SilenceNone
	}

	// Auto-stop wins over a repeat on the same tick.
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoStop
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

// WatchSilence samples level every tick until ctx is done or the monitor
// reports auto-stop. Every event other than SilenceNone goes to onEvent.
func WatchSilence(ctx context.Context, cfg SilenceConfig, isToggle func() bool, level func() float64, onEvent func(SilenceEvent)) {
	mon := NewSilenceMonitor(cfg, isToggle)
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultSilenceConfig().Tick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev := mon.Tick(level())
			if ev == SilenceNone {
				continue
			}
			onEvent(ev)
			if ev == SilenceAutoStop {
				return
			}
		}
	}
}
